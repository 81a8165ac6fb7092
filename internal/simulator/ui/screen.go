package ui

import (
	"fmt"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/banshee-data/actsim/internal/simulator/pipeline"
)

var (
	styleNormal    = tcell.StyleDefault
	styleBorder    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleTitle     = tcell.StyleDefault.Foreground(tcell.ColorWhite).Bold(true)
	styleTrack     = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleTrackRisk = tcell.StyleDefault.Foreground(tcell.ColorRed).Bold(true)
	styleLabel     = tcell.StyleDefault.Foreground(tcell.ColorAqua)
	styleAlertHot  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleAlertCold = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

// riskDeadband is the minimum risk delta that causes an alert row's
// displayed value to update; smaller fluctuations between ticks (the
// Monte-Carlo estimate's own sampling noise) are suppressed so the table
// does not flicker every frame.
const riskDeadband = 0.05

// alertKey identifies one alert row for display dead-banding, independent
// of the collision package's canonical PairKey so this package never needs
// to import it directly.
type alertKey struct{ A, B string }

// Screen renders driver snapshots to a tcell terminal screen and implements
// pipeline.Renderer. tcell has no built-in widget layer, so every panel
// border, label, and data row below is written directly into the cell
// buffer.
type Screen struct {
	screen tcell.Screen
	events chan tcell.Event

	lastRisk map[alertKey]float64
}

// NewScreen initializes a tcell terminal screen and starts its background
// event pump. Callers must call Close when done.
func NewScreen() (*Screen, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("ui: new screen: %w", err)
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("ui: init screen: %w", err)
	}
	s.SetStyle(styleNormal)
	s.Clear()

	scr := &Screen{
		screen:   s,
		events:   make(chan tcell.Event, 16),
		lastRisk: make(map[alertKey]float64),
	}
	go scr.pump()
	return scr, nil
}

func (s *Screen) pump() {
	for {
		ev := s.screen.PollEvent()
		if ev == nil {
			return
		}
		select {
		case s.events <- ev:
		default:
			// drop the event rather than block the poller; a missed resize
			// or keystroke is corrected by the next frame's redraw.
		}
	}
}

// PollQuit reports whether the user has pressed 'q', Esc, or Ctrl-C within
// timeout. A resize event triggers a screen sync but never reports quit.
func (s *Screen) PollQuit(timeout time.Duration) (bool, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case ev := <-s.events:
		switch e := ev.(type) {
		case *tcell.EventKey:
			if e.Rune() == 'q' || e.Rune() == 'Q' || e.Key() == tcell.KeyEscape || e.Key() == tcell.KeyCtrlC {
				return true, nil
			}
		case *tcell.EventResize:
			s.screen.Sync()
		}
		return false, nil
	case <-deadline.C:
		return false, nil
	}
}

// Close finalizes the tcell screen, restoring the terminal.
func (s *Screen) Close() error {
	s.screen.Fini()
	return nil
}

// Render draws one frame: a bordered radar canvas on the left, and stacked
// metrics / filter-status / alerts panels on the right.
func (s *Screen) Render(snap pipeline.Snapshot) error {
	w, h := s.screen.Size()
	s.screen.Clear()

	if w < 40 || h < 12 {
		drawText(s.screen, 0, 0, "terminal too small", styleAlertHot)
		s.screen.Show()
		return nil
	}

	radarW := w * 2 / 3
	sidebarX := radarW + 1
	sidebarW := w - sidebarX

	drawBox(s.screen, 0, 0, radarW, h, "radar")
	s.drawRadar(1, 1, radarW-2, h-2, snap)

	metricsH := 6
	filterH := 8
	alertsY := metricsH + filterH

	drawBox(s.screen, sidebarX, 0, sidebarW, metricsH, "metrics")
	drawMetrics(s.screen, sidebarX+1, 1, sidebarW-2, snap)

	drawBox(s.screen, sidebarX, metricsH, sidebarW, filterH, "filter status")
	drawFilterStatus(s.screen, sidebarX+1, metricsH+1, sidebarW-2, snap)

	drawBox(s.screen, sidebarX, alertsY, sidebarW, h-alertsY, "alerts")
	s.drawAlerts(sidebarX+1, alertsY+1, sidebarW-2, h-alertsY-2, snap)

	drawText(s.screen, 1, h-1, "press q to quit", styleBorder)
	s.screen.Show()
	return nil
}

// drawRadar scatters tracks within (x,y,w,h), scaled so the engine's radar
// range fills the smaller of the box's two dimensions. Blacklisted tracks
// and any track appearing in the alerts list are drawn in the risk color.
func (s *Screen) drawRadar(x, y, w, h int, snap pipeline.Snapshot) {
	if w <= 0 || h <= 0 || snap.RadarRange <= 0 {
		return
	}
	cx, cy := x+w/2, y+h/2
	radius := float64(min(w/2, h)) * 0.9
	if radius <= 0 {
		return
	}
	scale := radius / snap.RadarRange

	atRisk := make(map[string]struct{}, len(snap.Alerts)*2)
	for _, a := range snap.Alerts {
		atRisk[a.A] = struct{}{}
		atRisk[a.B] = struct{}{}
	}

	for _, t := range snap.Tracks {
		sx := cx + int(math.Round(t.Position.X*scale))
		sy := cy - int(math.Round(t.Position.Y*scale/2)) // halve for terminal cell aspect ratio
		if sx < x || sx >= x+w || sy < y || sy >= y+h {
			continue
		}
		_, risky := atRisk[t.ID]
		_, blacklisted := snap.Blacklist[t.ID]
		style := styleTrack
		if risky || blacklisted {
			style = styleTrackRisk
		}
		s.screen.SetContent(sx, sy, '*', nil, style)
	}
}

func drawMetrics(screen tcell.Screen, x, y, w int, snap pipeline.Snapshot) {
	rows := []string{
		fmt.Sprintf("ticks:      %d", snap.Metrics.Ticks),
		fmt.Sprintf("pairs/tick: %.1f", snap.Metrics.Throughput()),
		fmt.Sprintf("tracks:     %d", len(snap.Tracks)),
		fmt.Sprintf("run:        %s", truncate(snap.RunID, w)),
	}
	for i, r := range rows {
		if i >= 4 {
			break
		}
		drawText(screen, x, y+i, truncate(r, w), styleLabel)
	}
}

func drawFilterStatus(screen tcell.Screen, x, y, w int, snap pipeline.Snapshot) {
	st := snap.Admission
	rows := []string{
		fmt.Sprintf("layers:   %d", st.LayerCount),
		fmt.Sprintf("bits:     %d", st.TotalBits),
		fmt.Sprintf("fill:     %.1f%%", st.FillRatio*100),
		fmt.Sprintf("est fpr:  %.4f%%", st.EstFPR*100),
		fmt.Sprintf("pending:  %d", st.PendingSize),
	}
	for i, r := range rows {
		if i >= 5 {
			break
		}
		drawText(screen, x, y+i, truncate(r, w), styleLabel)
	}

	drawFillBar(screen, x, y+5, w, st.FillRatio)
}

func drawFillBar(screen tcell.Screen, x, y, w int, ratio float64) {
	if w <= 2 {
		return
	}
	filled := int(math.Round(ratio * float64(w)))
	for i := 0; i < w; i++ {
		r := rune(' ')
		style := styleBorder
		if i < filled {
			r = '#'
			style = styleLabel
		}
		screen.SetContent(x+i, y, r, nil, style)
	}
}

// drawAlerts renders the top-ranked alerts, applying a dead-band so that
// Monte-Carlo sampling noise between ticks does not make every row repaint
// every frame.
func (s *Screen) drawAlerts(x, y, w, h int, snap pipeline.Snapshot) {
	active := make(map[alertKey]struct{}, len(snap.Alerts))
	for i, a := range snap.Alerts {
		if i >= h {
			break
		}
		key := alertKey{A: a.A, B: a.B}
		active[key] = struct{}{}

		displayRisk := a.Risk
		if last, ok := s.lastRisk[key]; ok && math.Abs(a.Risk-last) <= riskDeadband {
			displayRisk = last
		} else {
			s.lastRisk[key] = a.Risk
		}

		tti := "-"
		if a.TTI != nil {
			tti = fmt.Sprintf("%.0fs", *a.TTI)
		}
		line := fmt.Sprintf("%s %5.1f%% %4s", truncate(a.A+"-"+a.B, w/2), displayRisk*100, tti)
		style := styleAlertCold
		if a.Blacklisted || displayRisk > 0.5 {
			style = styleAlertHot
		}
		drawText(s.screen, x, y+i, truncate(line, w), style)
	}

	for key := range s.lastRisk {
		if _, ok := active[key]; !ok {
			delete(s.lastRisk, key)
		}
	}
}

func drawBox(screen tcell.Screen, x, y, w, h int, title string) {
	if w <= 0 || h <= 0 {
		return
	}
	for i := 0; i < w; i++ {
		screen.SetContent(x+i, y, tcell.RuneHLine, nil, styleBorder)
		screen.SetContent(x+i, y+h-1, tcell.RuneHLine, nil, styleBorder)
	}
	for i := 0; i < h; i++ {
		screen.SetContent(x, y+i, tcell.RuneVLine, nil, styleBorder)
		screen.SetContent(x+w-1, y+i, tcell.RuneVLine, nil, styleBorder)
	}
	screen.SetContent(x, y, tcell.RuneULCorner, nil, styleBorder)
	screen.SetContent(x+w-1, y, tcell.RuneURCorner, nil, styleBorder)
	screen.SetContent(x, y+h-1, tcell.RuneLLCorner, nil, styleBorder)
	screen.SetContent(x+w-1, y+h-1, tcell.RuneLRCorner, nil, styleBorder)

	if title != "" && w > len(title)+2 {
		drawText(screen, x+2, y, " "+title+" ", styleTitle)
	}
}

func drawText(screen tcell.Screen, x, y int, text string, style tcell.Style) {
	for i, r := range text {
		screen.SetContent(x+i, y, r, nil, style)
	}
}

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
