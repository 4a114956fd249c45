package tracker

import "github.com/banshee-data/tracksight/internal/geom"

// Two-pass detection-to-track association.
//
// Pass 1 offers the high-confidence detections (score ≥ TrackThresh) to every
// live track, Lost ones included so an occluded vehicle can reclaim its ID
// the moment it reappears. Pass 2 offers the low-confidence leftovers to the
// tracks pass 1 could not serve; a weak detection is often just an occluded
// or blurred vehicle, and matching it keeps the trajectory alive without
// ever letting it found a new track.
//
// Both passes share the same cost (1 - IoU) and the same MatchThresh gate:
// pairs below the gate are forbidden in the cost matrix, so the solver
// routes around them and they can never be reported as matches.

// detMatch pairs an index into the live track slice with an index into the
// submitted detection slice.
type detMatch struct {
	trackIdx int
	detIdx   int
}

// associationResult partitions one frame's tracks and detections into the
// three disjoint sets the lifecycle step consumes.
type associationResult struct {
	matches         []detMatch
	unmatchedTracks []int // indices into tracks, both passes exhausted
	freshDetections []int // unmatched high-confidence detection indices
}

// associate matches detections to tracks for one frame. tracks must be in
// ascending ID order; the solver prefers earlier rows on exact-cost ties, so
// that ordering is what makes the tie-break deterministic.
func associate(tracks []*track, dets []Detection, cfg Config) associationResult {
	var high, low []int
	for i, d := range dets {
		if d.Score >= cfg.TrackThresh {
			high = append(high, i)
		} else {
			low = append(low, i)
		}
	}

	predicted := make([]geom.Box, len(tracks))
	for i, tr := range tracks {
		predicted[i] = tr.predictedBox()
	}

	trackRows := make([]int, len(tracks))
	for i := range tracks {
		trackRows[i] = i
	}

	var res associationResult

	// Pass 1: high-confidence detections against every live track.
	remaining, unusedHigh := matchPass(&res, trackRows, high, predicted, dets, cfg.MatchThresh)
	res.freshDetections = unusedHigh

	// Pass 2: low-confidence detections against the leftover tracks. The
	// low-confidence leftovers are discarded, never returned.
	remaining, _ = matchPass(&res, remaining, low, predicted, dets, cfg.MatchThresh)
	res.unmatchedTracks = remaining

	return res
}

// matchPass runs one assignment round between a subset of tracks and a
// subset of detections, appending accepted pairs to res.matches. It returns
// the still-unmatched track rows and detection columns.
func matchPass(res *associationResult, trackRows, detCols []int, predicted []geom.Box, dets []Detection, matchThresh float64) (outTracks, outDets []int) {
	if len(trackRows) == 0 || len(detCols) == 0 {
		return trackRows, detCols
	}

	rowBoxes := make([]geom.Box, len(trackRows))
	for i, ti := range trackRows {
		rowBoxes[i] = predicted[ti]
	}
	colBoxes := make([]geom.Box, len(detCols))
	for j, di := range detCols {
		colBoxes[j] = dets[di].Box
	}
	ious := geom.IoUMatrix(rowBoxes, colBoxes)

	cost := make([][]float64, len(trackRows))
	for i := range trackRows {
		cost[i] = make([]float64, len(detCols))
		for j := range detCols {
			if ious[i][j] < matchThresh {
				cost[i][j] = assignInf
			} else {
				cost[i][j] = 1 - ious[i][j]
			}
		}
	}

	assigned := solveAssignment(cost)

	usedDet := make([]bool, len(detCols))
	for i, j := range assigned {
		if j < 0 {
			outTracks = append(outTracks, trackRows[i])
			continue
		}
		usedDet[j] = true
		res.matches = append(res.matches, detMatch{trackIdx: trackRows[i], detIdx: detCols[j]})
	}
	for j, used := range usedDet {
		if !used {
			outDets = append(outDets, detCols[j])
		}
	}
	return outTracks, outDets
}
