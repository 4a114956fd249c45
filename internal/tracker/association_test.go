package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/tracksight/internal/geom"
)

func mkDet(x1, y1, x2, y2, score float64) Detection {
	return Detection{Box: geom.Box{X1: x1, Y1: y1, X2: x2, Y2: y2}, Score: score, Class: "car"}
}

func mkTracks(kf *kalmanFilter, boxes ...geom.Box) []*track {
	tracks := make([]*track, len(boxes))
	for i, b := range boxes {
		tracks[i] = newTrack(int64(i+1), Detection{Box: b, Score: 0.9, Class: "car"}, 1, kf)
		tracks[i].State = StateTracked
	}
	return tracks
}

// ---------------------------------------------------------------------------
// associate
// ---------------------------------------------------------------------------

func TestAssociateHighConfidenceMatch(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf, geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10})
	dets := []Detection{mkDet(0, 0, 10, 10, 0.9)}

	res := associate(tracks, dets, DefaultConfig())
	require.Len(t, res.matches, 1)
	assert.Equal(t, 0, res.matches[0].trackIdx)
	assert.Equal(t, 0, res.matches[0].detIdx)
	assert.Empty(t, res.unmatchedTracks)
	assert.Empty(t, res.freshDetections)
}

func TestAssociateGateRejectsWeakOverlap(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf, geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10})
	// IoU = 50/150 ≈ 0.33 which is under the default 0.8 gate.
	dets := []Detection{mkDet(5, 0, 15, 10, 0.9)}

	res := associate(tracks, dets, DefaultConfig())
	assert.Empty(t, res.matches)
	assert.Equal(t, []int{0}, res.unmatchedTracks)
	assert.Equal(t, []int{0}, res.freshDetections)
}

func TestAssociateSecondPassRecoversWithLowConfidence(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf,
		geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
		geom.Box{X1: 100, Y1: 100, X2: 110, Y2: 110},
	)
	dets := []Detection{
		mkDet(0, 0, 10, 10, 0.9),        // pass 1 serves track 0
		mkDet(100, 100, 110, 110, 0.25), // pass 2 recovers track 1
	}

	res := associate(tracks, dets, DefaultConfig())
	require.Len(t, res.matches, 2)

	byTrack := map[int]int{}
	for _, m := range res.matches {
		byTrack[m.trackIdx] = m.detIdx
	}
	assert.Equal(t, 0, byTrack[0])
	assert.Equal(t, 1, byTrack[1])
	assert.Empty(t, res.unmatchedTracks)
	assert.Empty(t, res.freshDetections)
}

func TestAssociateLowConfidenceNeverFresh(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf, geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10})
	// Far from the only track and under the confidence split.
	dets := []Detection{mkDet(500, 500, 510, 510, 0.3)}

	res := associate(tracks, dets, DefaultConfig())
	assert.Empty(t, res.matches)
	assert.Equal(t, []int{0}, res.unmatchedTracks)
	assert.Empty(t, res.freshDetections)
}

func TestAssociateSingleDetectionServesOneTrack(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf,
		geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
		geom.Box{X1: 2, Y1: 0, X2: 12, Y2: 10},
	)
	// A single detection that overlaps both tracks; only one may take it.
	dets := []Detection{mkDet(0, 0, 10, 10, 0.9)}

	cfg := DefaultConfig()
	cfg.MatchThresh = 0.5
	res := associate(tracks, dets, cfg)

	require.Len(t, res.matches, 1)
	assert.Equal(t, 0, res.matches[0].trackIdx) // exact overlap beats partial
	assert.Equal(t, []int{1}, res.unmatchedTracks)
	assert.Empty(t, res.freshDetections)
}

func TestAssociateOutputsDisjoint(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()
	tracks := mkTracks(kf,
		geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10},
		geom.Box{X1: 50, Y1: 50, X2: 60, Y2: 60},
		geom.Box{X1: 200, Y1: 200, X2: 210, Y2: 210},
	)
	dets := []Detection{
		mkDet(0, 0, 10, 10, 0.9),
		mkDet(50, 50, 60, 60, 0.4),
		mkDet(300, 300, 310, 310, 0.95),
		mkDet(400, 400, 410, 410, 0.2),
	}

	res := associate(tracks, dets, DefaultConfig())

	seenTracks := map[int]bool{}
	seenDets := map[int]bool{}
	for _, m := range res.matches {
		assert.False(t, seenTracks[m.trackIdx])
		assert.False(t, seenDets[m.detIdx])
		seenTracks[m.trackIdx] = true
		seenDets[m.detIdx] = true
	}
	for _, ti := range res.unmatchedTracks {
		assert.False(t, seenTracks[ti])
		seenTracks[ti] = true
	}
	for _, di := range res.freshDetections {
		assert.False(t, seenDets[di])
		seenDets[di] = true
		assert.GreaterOrEqual(t, dets[di].Score, 0.5)
	}

	// Every track accounted for; low-confidence leftovers simply vanish.
	assert.Len(t, seenTracks, 3)
}

func TestAssociateEmptyInputs(t *testing.T) {
	t.Parallel()

	kf := newKalmanFilter()

	t.Run("no tracks", func(t *testing.T) {
		t.Parallel()
		res := associate(nil, []Detection{mkDet(0, 0, 10, 10, 0.9)}, DefaultConfig())
		assert.Empty(t, res.matches)
		assert.Empty(t, res.unmatchedTracks)
		assert.Equal(t, []int{0}, res.freshDetections)
	})

	t.Run("no detections", func(t *testing.T) {
		t.Parallel()
		tracks := mkTracks(kf, geom.Box{X1: 0, Y1: 0, X2: 10, Y2: 10})
		res := associate(tracks, nil, DefaultConfig())
		assert.Empty(t, res.matches)
		assert.Equal(t, []int{0}, res.unmatchedTracks)
		assert.Empty(t, res.freshDetections)
	})
}
