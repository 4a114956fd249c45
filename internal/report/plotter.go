package report

import (
	"fmt"
	"image/color"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/tracksight/internal/db"
)

// maxLegendTracks caps legend entries so busy runs stay readable.
const maxLegendTracks = 12

// trackPalette cycles the same viridis ramp the HTML charts use, as RGBA.
var trackPalette = []color.RGBA{
	{R: 0x44, G: 0x01, B: 0x54, A: 0xff},
	{R: 0x3e, G: 0x49, B: 0x89, A: 0xff},
	{R: 0x31, G: 0x68, B: 0x8e, A: 0xff},
	{R: 0x26, G: 0x82, B: 0x8e, A: 0xff},
	{R: 0x1f, G: 0x9e, B: 0x89, A: 0xff},
	{R: 0x35, G: 0xb7, B: 0x79, A: 0xff},
	{R: 0x6e, G: 0xce, B: 0x58, A: 0xff},
	{R: 0xb5, G: 0xde, B: 0x2b, A: 0xff},
}

func trackColor(i int) color.Color {
	return trackPalette[i%len(trackPalette)]
}

// SaveTrajectoryPlot writes a static plot of per-track box centre paths to
// path. The image format follows the file extension (png, svg, pdf).
func SaveTrajectoryPlot(path string, run *db.TrackingRun, obs []db.TrackObservationRow) error {
	if len(obs) == 0 {
		return fmt.Errorf("no observations to plot")
	}

	byTrack := make(map[int64][]db.TrackObservationRow)
	for _, o := range obs {
		byTrack[o.TrackID] = append(byTrack[o.TrackID], o)
	}
	trackIDs := make([]int64, 0, len(byTrack))
	for id := range byTrack {
		trackIDs = append(trackIDs, id)
	}
	sort.Slice(trackIDs, func(a, b int) bool { return trackIDs[a] < trackIDs[b] })

	p := plot.New()
	p.Title.Text = "Track Trajectories"
	if run != nil {
		p.Title.Text = fmt.Sprintf("Track Trajectories (camera=%s run=%s)", run.CameraID, run.RunID)
	}
	p.X.Label.Text = "X (px)"
	p.Y.Label.Text = "Y (px)"

	for i, id := range trackIDs {
		samples := byTrack[id]

		// Sort by frame index so the line follows the motion path.
		sort.Slice(samples, func(a, b int) bool {
			return samples[a].Frame < samples[b].Frame
		})

		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			x, y := s.Box.Center()
			pts = append(pts, plotter.XY{X: x, Y: y})
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("failed to create line for track %d: %w", id, err)
		}
		line.Color = trackColor(i)
		line.Width = vg.Points(1)
		p.Add(line)
		if len(trackIDs) <= maxLegendTracks {
			p.Legend.Add(fmt.Sprintf("track %d", id), line)
		}
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 10*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save trajectory plot: %w", err)
	}
	return nil
}
