package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/httputil"
	"github.com/banshee-data/tracksight/internal/session"
)

// loadCamera fetches a camera and writes the error response itself when the
// lookup fails. Callers bail out on nil.
func (s *Server) loadCamera(w http.ResponseWriter, cameraID string) *db.Camera {
	camera, err := s.db.GetCamera(cameraID)
	if err != nil {
		if errors.Is(err, db.ErrCameraNotFound) {
			httputil.NotFound(w, fmt.Sprintf("camera %s not found", cameraID))
			return nil
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get camera: %v", err))
		return nil
	}
	return camera
}

// storedOverrides parses a camera's persisted tracking config column.
func storedOverrides(camera *db.Camera) (*config.TrackingParams, error) {
	if camera.TrackingConfig == nil || *camera.TrackingConfig == "" {
		return nil, nil
	}
	return config.ParseTrackingParams([]byte(*camera.TrackingConfig))
}

// handleTrackingEnable persists the tracking flag for a camera.
// POST /api/cameras/{id}/tracking/enable | /api/cameras/{id}/tracking/disable
func (s *Server) handleTrackingEnable(w http.ResponseWriter, r *http.Request, cameraID string, enabled bool) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	if err := s.db.SetTrackingEnabled(cameraID, enabled); err != nil {
		if errors.Is(err, db.ErrCameraNotFound) {
			httputil.NotFound(w, fmt.Sprintf("camera %s not found", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to update tracking flag: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id":        cameraID,
		"tracking_enabled": enabled,
	})
}

// handleTrackingConfig reads or updates a camera's tracking parameters.
// GET returns the effective parameter document. PUT applies a partial
// update merged over the current values; a live session picks the result
// up from its next frame.
func (s *Server) handleTrackingConfig(w http.ResponseWriter, r *http.Request, cameraID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetTrackingConfig(w, r, cameraID)
	case http.MethodPut:
		s.handlePutTrackingConfig(w, r, cameraID)
	default:
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET or PUT")
	}
}

func (s *Server) handleGetTrackingConfig(w http.ResponseWriter, r *http.Request, cameraID string) {
	camera := s.loadCamera(w, cameraID)
	if camera == nil {
		return
	}
	overrides, err := storedOverrides(camera)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("stored tracking config is invalid: %v", err))
		return
	}
	effective := s.defaults
	if overrides != nil {
		effective = overrides.Merge(s.defaults)
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id": cameraID,
		"params": map[string]interface{}{
			"track_thresh": effective.GetTrackThresh(),
			"track_buffer": effective.GetTrackBuffer(),
			"match_thresh": effective.GetMatchThresh(),
		},
		"overrides": overrides,
	})
}

func (s *Server) handlePutTrackingConfig(w http.ResponseWriter, r *http.Request, cameraID string) {
	camera := s.loadCamera(w, cameraID)
	if camera == nil {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("failed to read request body: %v", err))
		return
	}
	partial, err := config.ParseTrackingParams(body)
	if err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid tracking config: %v", err))
		return
	}

	current, err := storedOverrides(camera)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("stored tracking config is invalid: %v", err))
		return
	}
	merged := partial.Merge(current)

	data, err := json.Marshal(merged)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to encode tracking config: %v", err))
		return
	}
	configJSON := string(data)
	if err := s.db.SetTrackingConfig(cameraID, &configJSON); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to store tracking config: %v", err))
		return
	}

	// A live session adopts the new values between frames.
	if live, ok := s.manager.Get(cameraID); ok {
		if err := live.UpdateConfig(partial); err != nil && !errors.Is(err, session.ErrSessionStopped) {
			httputil.InternalServerError(w, fmt.Sprintf("failed to reconfigure live session: %v", err))
			return
		}
	}

	effective := merged.Merge(s.defaults)
	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id": cameraID,
		"params": map[string]interface{}{
			"track_thresh": effective.GetTrackThresh(),
			"track_buffer": effective.GetTrackBuffer(),
			"match_thresh": effective.GetMatchThresh(),
		},
		"overrides": merged,
	})
}

// handleTrackingStart creates a tracking session and its run record.
// POST /api/cameras/{id}/tracking/start
func (s *Server) handleTrackingStart(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	camera := s.loadCamera(w, cameraID)
	if camera == nil {
		return
	}
	if !camera.TrackingEnabled {
		httputil.BadRequest(w, fmt.Sprintf("tracking is not enabled for camera %s", cameraID))
		return
	}

	overrides, err := storedOverrides(camera)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("stored tracking config is invalid: %v", err))
		return
	}

	live, err := s.manager.StartSession(cameraID, overrides)
	if err != nil {
		if errors.Is(err, session.ErrSessionActive) {
			httputil.Conflict(w, fmt.Sprintf("tracking already running for camera %s", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to start tracking: %v", err))
		return
	}

	status := live.Status()
	if err := s.db.CreateTrackingRun(&db.TrackingRun{
		RunID:            live.RunID,
		CameraID:         cameraID,
		StartedUnixNanos: status.StartedAt.UnixNano(),
	}); err != nil {
		// The session is already live; a failed run row means persistence
		// is broken, so tear the session back down.
		_, _ = s.manager.StopSession(cameraID)
		httputil.InternalServerError(w, fmt.Sprintf("failed to create run record: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id":  cameraID,
		"run_id":     live.RunID,
		"started_at": status.StartedAt,
	})
}

// handleTrackingStop tears the session down and finalises its run record.
// POST /api/cameras/{id}/tracking/stop
func (s *Server) handleTrackingStop(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}
	if camera := s.loadCamera(w, cameraID); camera == nil {
		return
	}

	summary, err := s.manager.StopSession(cameraID)
	if err != nil {
		if errors.Is(err, session.ErrNoSession) {
			httputil.Conflict(w, fmt.Sprintf("no tracking session running for camera %s", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to stop tracking: %v", err))
		return
	}

	ended := summary.EndedAt.UnixNano()
	if err := s.db.FinishTrackingRun(&db.TrackingRun{
		RunID:             summary.RunID,
		EndedUnixNanos:    &ended,
		Frames:            summary.Frames,
		TracksCreated:     summary.TracksCreated,
		DroppedDetections: summary.DroppedDetections,
		DroppedRecords:    summary.DroppedRecords,
	}); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to finalise run record: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id":          cameraID,
		"run_id":             summary.RunID,
		"frames":             summary.Frames,
		"tracks_created":     summary.TracksCreated,
		"dropped_detections": summary.DroppedDetections,
	})
}

// handleTrackingStatus reports the persisted flag and live session counters.
// GET /api/cameras/{id}/tracking/status
func (s *Server) handleTrackingStatus(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	camera := s.loadCamera(w, cameraID)
	if camera == nil {
		return
	}

	resp := map[string]interface{}{
		"camera_id":        cameraID,
		"tracking_enabled": camera.TrackingEnabled,
		"running":          false,
	}
	if live, ok := s.manager.Get(cameraID); ok {
		status := live.Status()
		resp["running"] = true
		resp["run_id"] = status.RunID
		resp["started_at"] = status.StartedAt
		resp["frames"] = status.Frames
		resp["engine"] = status.Engine
		if status.DroppedRecords > 0 {
			resp["dropped_records"] = status.DroppedRecords
		}
	}
	httputil.WriteJSONOK(w, resp)
}
