// Package report turns persisted tracking runs into aggregate statistics,
// interactive ECharts pages and static trajectory plots.
package report

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/tracksight/internal/db"
)

// RunSummary holds aggregate statistics for one tracking run.
type RunSummary struct {
	RunID             string         `json:"run_id"`
	CameraID          string         `json:"camera_id"`
	Frames            int64          `json:"frames"`
	DroppedDetections int64          `json:"dropped_detections"`
	TrackCount        int            `json:"track_count"`
	ByClass           map[string]int `json:"by_class"`
	AvgLifetimeFrames float64        `json:"avg_lifetime_frames"`
	P50LifetimeFrames float64        `json:"p50_lifetime_frames"`
	P85LifetimeFrames float64        `json:"p85_lifetime_frames"`
	P95LifetimeFrames float64        `json:"p95_lifetime_frames"`
	MaxLifetimeFrames float64        `json:"max_lifetime_frames"`
	AvgScore          float64        `json:"avg_score"`
	P50Score          float64        `json:"p50_score"`
	PeakScore         float64        `json:"peak_score"`
}

// Summarize computes aggregate statistics for a run from its persisted track
// rows. Lifetime is measured in frames from a track's first to its last
// matched detection, inclusive.
func Summarize(run *db.TrackingRun, tracks []db.TrackRow) *RunSummary {
	summary := &RunSummary{
		TrackCount: len(tracks),
		ByClass:    make(map[string]int),
	}
	if run != nil {
		summary.RunID = run.RunID
		summary.CameraID = run.CameraID
		summary.Frames = run.Frames
		summary.DroppedDetections = run.DroppedDetections
	}
	if len(tracks) == 0 {
		return summary
	}

	lifetimes := make([]float64, 0, len(tracks))
	scores := make([]float64, 0, len(tracks))
	for _, t := range tracks {
		class := t.Class
		if class == "" {
			class = "unknown"
		}
		summary.ByClass[class]++
		lifetimes = append(lifetimes, float64(t.LastFrame-t.FirstFrame+1))
		scores = append(scores, t.AvgScore)
		if t.PeakScore > summary.PeakScore {
			summary.PeakScore = t.PeakScore
		}
	}

	// stat.Quantile wants its input sorted ascending.
	sort.Float64s(lifetimes)
	sort.Float64s(scores)

	summary.AvgLifetimeFrames = stat.Mean(lifetimes, nil)
	summary.P50LifetimeFrames = stat.Quantile(0.50, stat.Empirical, lifetimes, nil)
	summary.P85LifetimeFrames = stat.Quantile(0.85, stat.Empirical, lifetimes, nil)
	summary.P95LifetimeFrames = stat.Quantile(0.95, stat.Empirical, lifetimes, nil)
	summary.MaxLifetimeFrames = lifetimes[len(lifetimes)-1]
	summary.AvgScore = stat.Mean(scores, nil)
	summary.P50Score = stat.Quantile(0.50, stat.Empirical, scores, nil)

	return summary
}
