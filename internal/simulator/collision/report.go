package collision

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/banshee-data/actsim/internal/simulator/debug"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// Alert is one ranked collision-map entry joined against its endpoints'
// current positions, used by both the terminal UI's alerts table and the
// debug stderr summary emitted on every prune.
type Alert struct {
	A, B        string
	Dist        float64
	Altitude    float64
	Risk        float64
	TTI         *float64
	Urgency     float64
	Blacklisted bool
}

// RankedAlerts joins the engine's collision map against its track store and
// returns the surviving pairs sorted by descending urgency (risk divided by
// tti times the greater of distance or 1m), the ranking the terminal UI's
// alerts table and the debug stderr summary share. Pairs whose endpoints
// have since left the track store are dropped. limit <= 0 means unlimited.
func RankedAlerts(e *Engine, limit int) []Alert {
	alerts := make([]Alert, 0, len(e.collisions))
	for k, rec := range e.collisions {
		ta := e.tracks.Get(k.A)
		tb := e.tracks.Get(k.B)
		if ta == nil || tb == nil {
			continue
		}
		dist := ta.Position.Distance(tb.Position)
		tti := 1.0
		if rec.TTI != nil {
			tti = *rec.TTI
		}
		urgency := rec.Risk / (tti * math.Max(dist, 1))
		alerts = append(alerts, Alert{
			A:           k.A,
			B:           k.B,
			Dist:        dist,
			Altitude:    ta.Altitude,
			Risk:        rec.Risk,
			TTI:         rec.TTI,
			Urgency:     urgency,
			Blacklisted: e.Blacklisted(k.A) || e.Blacklisted(k.B),
		})
	}
	sort.Slice(alerts, func(i, j int) bool { return alerts[i].Urgency > alerts[j].Urgency })
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// AppMetrics accumulates run-level counters surfaced in the terminal UI's
// system-metrics panel and in the debug exports below.
type AppMetrics struct {
	Ticks               int
	PairsChecked        int
	TotalProcessingTime time.Duration

	tickPairs []int
	tickRisks []float64
}

// RecordTick appends one tick's counters. topRisk is the highest risk in
// the collision map at the end of that tick, 0 if the map was empty.
func (m *AppMetrics) RecordTick(pairsChecked int, topRisk float64, elapsed time.Duration) {
	m.Ticks++
	m.PairsChecked += pairsChecked
	m.TotalProcessingTime += elapsed
	m.tickPairs = append(m.tickPairs, pairsChecked)
	m.tickRisks = append(m.tickRisks, topRisk)
}

// Throughput returns the mean number of pairs checked per tick.
func (m *AppMetrics) Throughput() float64 {
	if m.Ticks == 0 {
		return 0
	}
	return stat.Mean(intsToFloats(m.tickPairs), nil)
}

func intsToFloats(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	return out
}

// TopRisk returns the highest risk currently in the engine's collision
// map, or 0 if it is empty.
func TopRisk(e *Engine) float64 {
	top := 0.0
	for _, rec := range e.collisions {
		if rec.Risk > top {
			top = rec.Risk
		}
	}
	return top
}

// WriteDebugPNG renders a scatter of the current track field to outputDir,
// coloring tracks that are blacklisted or appear in the collision map
// separately from the rest. A no-op unless debug logging is enabled.
func WriteDebugPNG(e *Engine, outputDir string) error {
	if !debug.Enabled() {
		return nil
	}
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("collision: create debug output dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = "track field"
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"

	atRisk := make(map[string]struct{}, len(e.collisions)*2)
	for k := range e.collisions {
		atRisk[k.A] = struct{}{}
		atRisk[k.B] = struct{}{}
	}

	var normalPts, riskPts plotter.XYs
	for _, tr := range e.tracks.All() {
		pt := plotter.XY{X: tr.Position.X, Y: tr.Position.Y}
		_, flagged := atRisk[tr.ID]
		if flagged || e.Blacklisted(tr.ID) {
			riskPts = append(riskPts, pt)
		} else {
			normalPts = append(normalPts, pt)
		}
	}

	if len(normalPts) > 0 {
		s, err := plotter.NewScatter(normalPts)
		if err != nil {
			return fmt.Errorf("collision: build track scatter: %w", err)
		}
		s.Color = color.RGBA{B: 200, A: 255}
		p.Add(s)
	}
	if len(riskPts) > 0 {
		s, err := plotter.NewScatter(riskPts)
		if err != nil {
			return fmt.Errorf("collision: build risk scatter: %w", err)
		}
		s.Color = color.RGBA{R: 200, A: 255}
		p.Add(s)
	}

	file := filepath.Join(outputDir, fmt.Sprintf("tracks_%d.png", time.Now().UnixNano()))
	if err := p.Save(10*vg.Inch, 10*vg.Inch, file); err != nil {
		return fmt.Errorf("collision: save debug png: %w", err)
	}
	debug.Debugf("collision: wrote debug snapshot %s", file)
	return nil
}

// WriteRunSummaryHTML writes an interactive line chart of pairs-checked
// and top-risk over the run's lifetime. A no-op unless debug logging is
// enabled; intended to be called once at process exit.
func WriteRunSummaryHTML(m *AppMetrics, outputPath string) error {
	if !debug.Enabled() {
		return nil
	}

	ticks := make([]int, len(m.tickRisks))
	for i := range ticks {
		ticks[i] = i
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "collision engine run summary"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
	)
	line.SetXAxis(ticks).
		AddSeries("pairs checked", intLineData(m.tickPairs)).
		AddSeries("top risk", floatLineData(m.tickRisks))

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("collision: create run summary dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("collision: create run summary html: %w", err)
	}
	defer f.Close()

	page := components.NewPage()
	page.AddCharts(line)
	if err := page.Render(f); err != nil {
		return fmt.Errorf("collision: render run summary html: %w", err)
	}
	debug.Debugf("collision: wrote run summary %s", outputPath)
	return nil
}

func intLineData(xs []int) []opts.LineData {
	out := make([]opts.LineData, len(xs))
	for i, x := range xs {
		out[i] = opts.LineData{Value: x}
	}
	return out
}

func floatLineData(xs []float64) []opts.LineData {
	out := make([]opts.LineData, len(xs))
	for i, x := range xs {
		out[i] = opts.LineData{Value: x}
	}
	return out
}
