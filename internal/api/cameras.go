package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/httputil"
)

// handleCameras serves the camera collection: GET lists registered cameras,
// POST registers one.
func (s *Server) handleCameras(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleListCameras(w, r)
	case http.MethodPost:
		s.handleCreateCamera(w, r)
	default:
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET or POST")
	}
}

// handleCameraAPI is the dispatcher for /api/cameras/{id}/... endpoints. It
// parses the URL path and dispatches to the appropriate sub-handler.
func (s *Server) handleCameraAPI(w http.ResponseWriter, r *http.Request) {
	cameraID, subPath := parseCameraPath(r.URL.Path)
	if cameraID == "" {
		httputil.BadRequest(w, "missing camera id in path")
		return
	}

	switch subPath {
	case "":
		s.handleGetCamera(w, r, cameraID)
	case "tracking/enable":
		s.handleTrackingEnable(w, r, cameraID, true)
	case "tracking/disable":
		s.handleTrackingEnable(w, r, cameraID, false)
	case "tracking/config":
		s.handleTrackingConfig(w, r, cameraID)
	case "tracking/start":
		s.handleTrackingStart(w, r, cameraID)
	case "tracking/stop":
		s.handleTrackingStop(w, r, cameraID)
	case "tracking/status":
		s.handleTrackingStatus(w, r, cameraID)
	case "frames":
		s.handleIngestFrame(w, r, cameraID)
	case "tracks":
		s.handleTracks(w, r, cameraID)
	case "tracks/chart":
		s.handleTracksChart(w, r, cameraID)
	case "tracks/live":
		s.handleTracksLive(w, r, cameraID)
	default:
		httputil.NotFound(w, "endpoint not found")
	}
}

// parseCameraPath extracts the camera id and remaining path segments from
// /api/cameras/{id}/...
func parseCameraPath(path string) (cameraID string, subPath string) {
	trimmed := strings.TrimPrefix(path, "/api/cameras/")
	if trimmed == path {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 0 {
		return "", ""
	}
	cameraID = parts[0]
	if len(parts) > 1 {
		subPath = parts[1]
	}
	return
}

func (s *Server) handleListCameras(w http.ResponseWriter, r *http.Request) {
	cameras, err := s.db.GetAllCameras()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list cameras: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"cameras": cameras,
		"count":   len(cameras),
	})
}

func (s *Server) handleCreateCamera(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CameraID  string `json:"camera_id"`
		Name      string `json:"name"`
		StreamURL string `json:"stream_url"`
		Location  string `json:"location"`
		IsActive  *bool  `json:"is_active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	if req.CameraID == "" || req.Name == "" {
		httputil.BadRequest(w, "camera_id and name are required")
		return
	}

	// New cameras default to active unless the request says otherwise.
	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	camera := &db.Camera{
		CameraID:  req.CameraID,
		Name:      req.Name,
		StreamURL: req.StreamURL,
		Location:  req.Location,
		IsActive:  active,
	}
	if err := s.db.CreateCamera(camera); err != nil {
		if errors.Is(err, db.ErrCameraExists) {
			httputil.Conflict(w, fmt.Sprintf("camera %s already exists", req.CameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to create camera: %v", err))
		return
	}

	created, err := s.db.GetCamera(camera.CameraID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to load created camera: %v", err))
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCamera(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	camera, err := s.db.GetCamera(cameraID)
	if err != nil {
		if errors.Is(err, db.ErrCameraNotFound) {
			httputil.NotFound(w, fmt.Sprintf("camera %s not found", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get camera: %v", err))
		return
	}
	httputil.WriteJSONOK(w, camera)
}
