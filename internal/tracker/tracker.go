package tracker

import "sync"

// hitsToConfirm is the matched-detection count at which a tentative track is
// promoted to tracked. The seeding detection itself counts, so at 1 a track
// born from a confident detection is reported from its creation frame onward.
const hitsToConfirm = 1

// Tracker is the per-camera tracking engine: it owns the live track set, the
// monotonic ID source, and the frame cursor. All methods are safe for
// concurrent use; Step calls are serialized by the internal mutex, so each
// frame observes exactly one configuration.
type Tracker struct {
	mu  sync.Mutex
	cfg Config
	kf  *kalmanFilter

	// tracks is kept in creation order. IDs are minted monotonically, so
	// this is also ascending ID order, which fixes the association row
	// order and makes tie-breaks and output ordering deterministic.
	tracks    []*track
	nextID    int64
	lastFrame int64

	tracksCreated     int64
	droppedDetections int64
}

// StepResult is the outcome of one processed frame.
type StepResult struct {
	Frame   int64
	Active  []Snapshot // tracked and lost tracks, ascending ID
	Dropped int        // malformed detections discarded from this frame
}

// New returns an engine with the given configuration. Invalid configurations
// fall back to defaults; use Config.Validate first when rejection is wanted.
func New(cfg Config) *Tracker {
	if cfg.Validate() != nil {
		cfg = DefaultConfig()
	}
	return &Tracker{
		cfg:       cfg,
		kf:        newKalmanFilter(),
		nextID:    1,
		lastFrame: -1,
	}
}

// Step processes one frame of detections. frame must be strictly greater
// than the previous frame's index or the call is rejected with a
// SequenceError and no state changes. Malformed detections are dropped
// individually and counted in the result; the rest of the frame proceeds.
//
// An empty detection list is a valid frame: every live track records a miss.
func (t *Tracker) Step(frame int64, dets []Detection) (StepResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if frame <= t.lastFrame {
		return StepResult{}, &SequenceError{Got: frame, Last: t.lastFrame}
	}

	clean := make([]Detection, 0, len(dets))
	dropped := 0
	for i, d := range dets {
		if verr := d.validate(i); verr != nil {
			dropped++
			continue
		}
		clean = append(clean, d)
	}
	t.droppedDetections += int64(dropped)

	cfg := t.cfg

	// Advance every live track's motion estimate exactly once.
	for _, tr := range t.tracks {
		tr.predict(t.kf)
	}

	res := associate(t.tracks, clean, cfg)

	for _, m := range res.matches {
		t.tracks[m.trackIdx].applyMatch(clean[m.detIdx], frame, t.kf)
	}

	evicted := false
	for _, ti := range res.unmatchedTracks {
		if t.tracks[ti].applyMiss(cfg.TrackBuffer) {
			evicted = true
		}
	}

	for _, di := range res.freshDetections {
		tr := newTrack(t.nextID, clean[di], frame, t.kf)
		t.nextID++
		t.tracksCreated++
		if tr.Hits >= hitsToConfirm {
			tr.State = StateTracked
		}
		t.tracks = append(t.tracks, tr)
	}

	if evicted {
		kept := t.tracks[:0]
		for _, tr := range t.tracks {
			if tr.State != StateRemoved {
				kept = append(kept, tr)
			}
		}
		for i := len(kept); i < len(t.tracks); i++ {
			t.tracks[i] = nil
		}
		t.tracks = kept
	}

	t.lastFrame = frame
	return StepResult{Frame: frame, Active: t.activeLocked(), Dropped: dropped}, nil
}

// Reconfigure validates and installs a new configuration. It takes effect on
// the next Step; a rejected configuration leaves the previous one in force.
func (t *Tracker) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cfg = cfg
	return nil
}

// Reset discards all tracks and counters and restarts IDs from 1.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
	t.nextID = 1
	t.lastFrame = -1
	t.tracksCreated = 0
	t.droppedDetections = 0
}

// GetConfig returns the configuration the next Step will run under.
func (t *Tracker) GetConfig() Config {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cfg
}

// GetActiveTracks returns snapshots of the tracked and lost tracks without
// advancing the engine.
func (t *Tracker) GetActiveTracks() []Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.activeLocked()
}

func (t *Tracker) activeLocked() []Snapshot {
	out := make([]Snapshot, 0, len(t.tracks))
	for _, tr := range t.tracks {
		if tr.State == StateTracked || tr.State == StateLost {
			out = append(out, tr.snapshot())
		}
	}
	return out
}

// GetTrackCount returns live track totals broken down by state.
func (t *Tracker) GetTrackCount() (total, tracked, lost int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, tr := range t.tracks {
		switch tr.State {
		case StateTracked:
			tracked++
		case StateLost:
			lost++
		}
	}
	return len(t.tracks), tracked, lost
}

// Stats summarises engine counters for status reporting.
type Stats struct {
	LastFrame         int64 `json:"last_frame"`
	LiveTracks        int   `json:"live_tracks"`
	TrackedCount      int   `json:"tracked"`
	LostCount         int   `json:"lost"`
	TracksCreated     int64 `json:"tracks_created"`
	DroppedDetections int64 `json:"dropped_detections"`
}

// GetStats returns a copy of the engine counters.
func (t *Tracker) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := Stats{
		LastFrame:         t.lastFrame,
		LiveTracks:        len(t.tracks),
		TracksCreated:     t.tracksCreated,
		DroppedDetections: t.droppedDetections,
	}
	for _, tr := range t.tracks {
		switch tr.State {
		case StateTracked:
			s.TrackedCount++
		case StateLost:
			s.LostCount++
		}
	}
	return s
}
