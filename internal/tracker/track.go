package tracker

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/tracksight/internal/geom"
)

// State represents the lifecycle state of a track.
type State string

const (
	StateTentative State = "tentative" // just created, awaiting confirmation
	StateTracked   State = "tracked"   // confirmed and matched recently
	StateLost      State = "lost"      // unmatched but still within the buffer
	StateRemoved   State = "removed"   // evicted, never reported again
)

// track is the engine-internal mutable record for one object. Callers only
// ever see Snapshot copies.
type track struct {
	ID              int64
	State           State
	Score           float64
	Class           string
	TimeSinceUpdate int
	Hits            int
	StartFrame      int64
	LastFrame       int64

	// Kalman state in XYAH form; the filter itself is shared by the tracker.
	mean []float64
	cov  *mat.Dense

	// lastBox is the raw box of the most recent matched detection. Before
	// the filter has seen two observations this is also the prediction.
	lastBox geom.Box
}

// newTrack seeds a track from an unmatched high-confidence detection. The
// seeding detection counts as the first hit.
func newTrack(id int64, d Detection, frame int64, kf *kalmanFilter) *track {
	mean, cov := kf.initiate(d.Box)
	return &track{
		ID:         id,
		State:      StateTentative,
		Score:      d.Score,
		Class:      d.Class,
		Hits:       1,
		StartFrame: frame,
		LastFrame:  frame,
		mean:       mean,
		cov:        cov,
		lastBox:    d.Box,
	}
}

// predict advances the motion state by one frame. Called exactly once per
// track per Step, matched or not. Tracks not currently matched coast with a
// frozen height velocity so a stale velocity estimate cannot balloon the box.
func (tr *track) predict(kf *kalmanFilter) {
	if tr.State != StateTracked {
		tr.mean[7] = 0
	}
	kf.predict(tr.mean, tr.cov)
}

// predictedBox returns the current motion estimate in corner form.
func (tr *track) predictedBox() geom.Box {
	return xyahToBox(tr.mean[0], tr.mean[1], tr.mean[2], tr.mean[3])
}

// applyMatch folds a matched detection into the track: motion correction,
// payload refresh, and the matched-state transitions.
func (tr *track) applyMatch(d Detection, frame int64, kf *kalmanFilter) {
	kf.correct(tr.mean, tr.cov, d.Box)
	tr.lastBox = d.Box
	tr.Score = d.Score
	tr.Class = d.Class
	tr.TimeSinceUpdate = 0
	tr.Hits++
	tr.LastFrame = frame

	switch tr.State {
	case StateTentative:
		if tr.Hits >= hitsToConfirm {
			tr.State = StateTracked
		}
	case StateLost:
		tr.State = StateTracked
	}
}

// applyMiss records an unmatched frame and reports whether the track has
// outlived the buffer and must be removed.
func (tr *track) applyMiss(buffer int) (removed bool) {
	tr.TimeSinceUpdate++
	if tr.State == StateTracked {
		tr.State = StateLost
	}
	if tr.TimeSinceUpdate > buffer {
		tr.State = StateRemoved
		return true
	}
	return false
}

// Snapshot is an immutable copy of a track's externally visible fields,
// returned by Step and the status accessors.
type Snapshot struct {
	ID              int64    `json:"id"`
	Box             geom.Box `json:"box"`
	Score           float64  `json:"score"`
	Class           string   `json:"class"`
	State           State    `json:"state"`
	TimeSinceUpdate int      `json:"time_since_update"`
	Hits            int      `json:"hits"`
	StartFrame      int64    `json:"start_frame"`
}

// snapshot copies the reportable fields. The box is the latest matched box
// for fresh tracks and the motion estimate while coasting.
func (tr *track) snapshot() Snapshot {
	box := tr.lastBox
	if tr.TimeSinceUpdate > 0 {
		box = tr.predictedBox()
	}
	return Snapshot{
		ID:              tr.ID,
		Box:             box,
		Score:           tr.Score,
		Class:           tr.Class,
		State:           tr.State,
		TimeSinceUpdate: tr.TimeSinceUpdate,
		Hits:            tr.Hits,
		StartFrame:      tr.StartFrame,
	}
}
