// Package session owns the per-camera tracking runtime: one engine, one
// configuration, and one monotonic frame counter per camera, plus the
// registry that keeps cameras isolated from each other.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/tracksight/internal/config"
	"github.com/banshee-data/tracksight/internal/timeutil"
	"github.com/banshee-data/tracksight/internal/tracker"
)

var (
	// ErrSessionStopped is returned for calls against a stopped session.
	ErrSessionStopped = errors.New("tracking session is stopped")

	// ErrSessionActive is returned when starting a camera that already has
	// a live session.
	ErrSessionActive = errors.New("tracking session already running")

	// ErrNoSession is returned when no live session exists for a camera.
	ErrNoSession = errors.New("no tracking session running")
)

// RunRecorder persists per-frame outcomes of a tracking run. Implementations
// must tolerate bursts; the session calls it from a background goroutine so
// storage latency never stalls frame processing.
type RunRecorder interface {
	RecordFrame(cameraID, runID string, res tracker.StepResult) error
}

// FramePublisher fans per-frame outcomes out to live subscribers. It must
// not block.
type FramePublisher interface {
	PublishFrame(cameraID, runID string, res tracker.StepResult)
}

// frameRecord is one queued persistence unit.
type frameRecord struct {
	res tracker.StepResult
}

// recordQueueDepth bounds the persistence backlog. When storage falls this
// far behind, frames are dropped from the record stream (never from the
// engine) and counted.
const recordQueueDepth = 256

// Session binds one camera to one tracking engine for the duration of a run.
// IngestFrame, UpdateConfig and Stop are safe to call concurrently; frames
// are processed strictly one at a time, and a config update lands between
// frames, never inside one.
type Session struct {
	CameraID string
	RunID    string

	mu      sync.Mutex
	engine  *tracker.Tracker
	params  *config.TrackingParams
	next    int64 // frame index minted for the next ingest, starts at 1
	stopped bool

	recorder  RunRecorder
	publisher FramePublisher
	recordCh  chan frameRecord
	wg        sync.WaitGroup

	clock     timeutil.Clock
	startedAt time.Time

	droppedRecords int64 // frames not persisted because the queue was full
	summary        Summary
}

// newSession wires a session; callers go through Manager.StartSession.
func newSession(cameraID, runID string, params *config.TrackingParams, recorder RunRecorder, publisher FramePublisher, clock timeutil.Clock) *Session {
	s := &Session{
		CameraID:  cameraID,
		RunID:     runID,
		engine:    tracker.New(tracker.ConfigFromParams(params)),
		params:    params,
		next:      1,
		recorder:  recorder,
		publisher: publisher,
		clock:     clock,
		startedAt: clock.Now(),
	}
	if recorder != nil {
		s.recordCh = make(chan frameRecord, recordQueueDepth)
		s.wg.Add(1)
		go s.recordLoop()
	}
	return s
}

// recordLoop drains queued frames into the recorder until Stop closes the
// channel.
func (s *Session) recordLoop() {
	defer s.wg.Done()
	for rec := range s.recordCh {
		if err := s.recorder.RecordFrame(s.CameraID, s.RunID, rec.res); err != nil {
			opsf("camera %s run %s: record frame %d: %v", s.CameraID, s.RunID, rec.res.Frame, err)
		}
	}
}

// IngestFrame runs one frame of detections through the engine. The session
// mints the frame index itself, so callers submit frames in arrival order
// and never see sequencing errors. The returned result is the caller's own
// copy.
func (s *Session) IngestFrame(dets []tracker.Detection) (tracker.StepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return tracker.StepResult{}, ErrSessionStopped
	}

	res, err := s.engine.Step(s.next, dets)
	if err != nil {
		// The session owns the counter, so the engine cannot see a stale
		// index; surfacing this means a bug, not a caller mistake.
		return tracker.StepResult{}, err
	}
	s.next++

	if res.Dropped > 0 {
		diagf("camera %s frame %d: dropped %d malformed detections", s.CameraID, res.Frame, res.Dropped)
	}
	tracef("camera %s frame %d: %d active tracks", s.CameraID, res.Frame, len(res.Active))

	if s.recordCh != nil {
		select {
		case s.recordCh <- frameRecord{res: res}:
		default:
			s.droppedRecords++
			if s.droppedRecords == 1 || s.droppedRecords%100 == 0 {
				opsf("camera %s run %s: persistence backlog full, %d frames unrecorded", s.CameraID, s.RunID, s.droppedRecords)
			}
		}
	}
	if s.publisher != nil {
		s.publisher.PublishFrame(s.CameraID, s.RunID, res)
	}

	return res, nil
}

// UpdateConfig merges a partial parameter document onto the session's
// current parameters and installs the result. The new values apply from the
// next ingested frame; the frame in flight, if any, finishes under the old
// ones. Invalid parameters leave the session untouched.
func (s *Session) UpdateConfig(partial *config.TrackingParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSessionStopped
	}

	merged := partial.Merge(s.params)
	if err := merged.Validate(); err != nil {
		return err
	}
	if err := s.engine.Reconfigure(tracker.ConfigFromParams(merged)); err != nil {
		return err
	}
	s.params = merged
	diagf("camera %s run %s: config now thresh=%.2f buffer=%d match=%.2f",
		s.CameraID, s.RunID, merged.GetTrackThresh(), merged.GetTrackBuffer(), merged.GetMatchThresh())
	return nil
}

// ActiveTracks returns the current track snapshots without consuming a frame.
func (s *Session) ActiveTracks() []tracker.Snapshot {
	return s.engine.GetActiveTracks()
}

// Params returns the parameter document the next frame will run under.
func (s *Session) Params() *config.TrackingParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

// Status is a point-in-time summary of a live session.
type Status struct {
	CameraID       string        `json:"camera_id"`
	RunID          string        `json:"run_id"`
	StartedAt      time.Time     `json:"started_at"`
	Frames         int64         `json:"frames"`
	Engine         tracker.Stats `json:"engine"`
	DroppedRecords int64         `json:"dropped_records,omitempty"`
}

// Status reports the session's counters.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		CameraID:       s.CameraID,
		RunID:          s.RunID,
		StartedAt:      s.startedAt,
		Frames:         s.next - 1,
		Engine:         s.engine.GetStats(),
		DroppedRecords: s.droppedRecords,
	}
}

// Summary describes a finished run.
type Summary struct {
	CameraID          string
	RunID             string
	StartedAt         time.Time
	EndedAt           time.Time
	Frames            int64
	TracksCreated     int64
	DroppedDetections int64
	DroppedRecords    int64
}

// Stop tears the session down: in-memory tracks are discarded immediately
// and the persistence queue is flushed before the summary is returned.
// Stopping twice is harmless; later calls return the summary of the first.
func (s *Session) Stop() Summary {
	s.mu.Lock()
	if s.stopped {
		summary := s.summary
		s.mu.Unlock()
		s.wg.Wait()
		return summary
	}
	s.stopped = true
	stats := s.engine.GetStats()
	s.summary = Summary{
		CameraID:          s.CameraID,
		RunID:             s.RunID,
		StartedAt:         s.startedAt,
		EndedAt:           s.clock.Now(),
		Frames:            s.next - 1,
		TracksCreated:     stats.TracksCreated,
		DroppedDetections: stats.DroppedDetections,
		DroppedRecords:    s.droppedRecords,
	}
	s.engine.Reset()
	summary := s.summary
	s.mu.Unlock()

	if s.recordCh != nil {
		close(s.recordCh)
	}
	s.wg.Wait()
	return summary
}
