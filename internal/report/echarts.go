package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tracksight/internal/db"
)

// echartsAssetsHost pins rendered pages to the public echarts asset bundle so
// reports stay viewable without a local asset server.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// viridisRamp is the colour scale used for per-track visual maps.
var viridisRamp = []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}

// TrajectoryChart builds a scatter of box centres for every matched
// observation in a run, coloured by track ID so individual trajectories stand
// out. Coordinates are image pixels with the origin top-left.
func TrajectoryChart(run *db.TrackingRun, obs []db.TrackObservationRow) *charts.Scatter {
	pts := make([]opts.ScatterData, 0, len(obs))
	maxX := 0.0
	maxY := 0.0
	var maxID int64
	for _, o := range obs {
		x, y := o.Box.Center()
		if x > maxX {
			maxX = x
		}
		if y > maxY {
			maxY = y
		}
		if o.TrackID > maxID {
			maxID = o.TrackID
		}
		pts = append(pts, opts.ScatterData{Value: []interface{}{x, y, o.TrackID}})
	}
	padX := maxX * 1.05
	if padX == 0 {
		padX = 1.0
	}
	padY := maxY * 1.05
	if padY == 0 {
		padY = 1.0
	}
	if maxID == 0 {
		maxID = 1
	}

	subtitle := fmt.Sprintf("points=%d", len(pts))
	if run != nil {
		subtitle = fmt.Sprintf("camera=%s run=%s points=%d", run.CameraID, run.RunID, len(pts))
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Track Trajectories", Theme: "dark", Width: "900px", Height: "900px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Track Trajectories", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: padX, Name: "X (px)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: padY, Name: "Y (px)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxID),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: viridisRamp},
		}),
	)
	scatter.AddSeries("observations", pts, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 6}))
	return scatter
}

// ClassHistogram builds a bar chart of track counts per object class.
func ClassHistogram(tracks []db.TrackRow) *charts.Bar {
	counts := make(map[string]int)
	for _, t := range tracks {
		class := t.Class
		if class == "" {
			class = "unknown"
		}
		counts[class]++
	}
	classes := make([]string, 0, len(counts))
	for class := range counts {
		classes = append(classes, class)
	}
	sort.Strings(classes)

	y := make([]opts.BarData, 0, len(classes))
	for _, class := range classes {
		y = append(y, opts.BarData{Value: counts[class]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "480px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Tracks by Class", Subtitle: fmt.Sprintf("tracks=%d", len(tracks))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(classes).
		AddSeries("tracks", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}

// RenderRunPage writes a single HTML page combining the trajectory scatter
// and the class histogram for a run.
func RenderRunPage(w io.Writer, run *db.TrackingRun, tracks []db.TrackRow, obs []db.TrackObservationRow) error {
	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsHost)
	page.AddCharts(TrajectoryChart(run, obs), ClassHistogram(tracks))
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render run page: %w", err)
	}
	return nil
}
