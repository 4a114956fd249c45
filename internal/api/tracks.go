package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/banshee-data/tracksight/internal/db"
	"github.com/banshee-data/tracksight/internal/httputil"
	"github.com/banshee-data/tracksight/internal/report"
	"github.com/banshee-data/tracksight/internal/session"
	"github.com/banshee-data/tracksight/internal/tracker"
)

// handleIngestFrame is the external detector's push surface: one frame of
// detections in, the frame's active track snapshots out.
// POST /api/cameras/{id}/frames
func (s *Server) handleIngestFrame(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use POST")
		return
	}

	// A live session implies the camera exists, so the registry lookup is
	// only needed on the miss path to pick between 404 and 409.
	live, ok := s.manager.Get(cameraID)
	if !ok {
		if camera := s.loadCamera(w, cameraID); camera == nil {
			return
		}
		httputil.Conflict(w, fmt.Sprintf("no tracking session running for camera %s", cameraID))
		return
	}

	var req struct {
		Detections []tracker.Detection `json:"detections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON: %v", err))
		return
	}

	res, err := live.IngestFrame(req.Detections)
	if err != nil {
		if errors.Is(err, session.ErrSessionStopped) {
			httputil.Conflict(w, fmt.Sprintf("no tracking session running for camera %s", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to process frame: %v", err))
		return
	}

	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id": cameraID,
		"run_id":    live.RunID,
		"frame":     res.Frame,
		"tracks":    res.Active,
		"dropped":   res.Dropped,
	})
}

// handleTracks returns the live track snapshots when a session is running,
// or the persisted tracks of the camera's most recent run otherwise.
// GET /api/cameras/{id}/tracks
func (s *Server) handleTracks(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}

	if live, ok := s.manager.Get(cameraID); ok {
		tracks := live.ActiveTracks()
		httputil.WriteJSONOK(w, map[string]interface{}{
			"camera_id": cameraID,
			"run_id":    live.RunID,
			"live":      true,
			"tracks":    tracks,
			"count":     len(tracks),
		})
		return
	}

	if camera := s.loadCamera(w, cameraID); camera == nil {
		return
	}
	run, err := s.db.GetLatestRun(cameraID)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, fmt.Sprintf("no tracking runs recorded for camera %s", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get latest run: %v", err))
		return
	}
	tracks, err := s.db.GetRunTracks(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get run tracks: %v", err))
		return
	}
	httputil.WriteJSONOK(w, map[string]interface{}{
		"camera_id": cameraID,
		"run_id":    run.RunID,
		"live":      false,
		"tracks":    tracks,
		"count":     len(tracks),
	})
}

// handleTracksChart renders the camera's most recent run as an HTML page
// with the trajectory scatter and class histogram.
// GET /api/cameras/{id}/tracks/chart
func (s *Server) handleTracksChart(w http.ResponseWriter, r *http.Request, cameraID string) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, http.StatusMethodNotAllowed, "method not allowed; use GET")
		return
	}
	if camera := s.loadCamera(w, cameraID); camera == nil {
		return
	}

	run, err := s.db.GetLatestRun(cameraID)
	if err != nil {
		if errors.Is(err, db.ErrRunNotFound) {
			httputil.NotFound(w, fmt.Sprintf("no tracking runs recorded for camera %s", cameraID))
			return
		}
		httputil.InternalServerError(w, fmt.Sprintf("failed to get latest run: %v", err))
		return
	}
	tracks, err := s.db.GetRunTracks(run.RunID)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get run tracks: %v", err))
		return
	}
	obs, err := s.db.GetRunObservations(run.RunID, 0)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to get run observations: %v", err))
		return
	}

	var buf bytes.Buffer
	if err := report.RenderRunPage(&buf, run, tracks, obs); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handleTracksLive upgrades to a websocket fed with per-frame track updates.
// GET /api/cameras/{id}/tracks/live
func (s *Server) handleTracksLive(w http.ResponseWriter, r *http.Request, cameraID string) {
	if s.hub == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "live streaming not configured")
		return
	}
	s.hub.ServeWS(w, r, cameraID)
}
