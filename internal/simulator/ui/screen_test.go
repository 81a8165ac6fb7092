package ui

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/actsim/internal/simulator/collision"
	"github.com/banshee-data/actsim/internal/simulator/pipeline"
)

func newTestScreen(t *testing.T, w, h int) *Screen {
	t.Helper()
	sim := tcell.NewSimulationScreen("")
	require.NoError(t, sim.Init())
	sim.SetSize(w, h)
	return &Screen{screen: sim, events: make(chan tcell.Event, 16), lastRisk: make(map[alertKey]float64)}
}

func TestRenderTooSmallTerminalDoesNotPanic(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 10, 5)
	err := s.Render(pipeline.Snapshot{})
	assert.NoError(t, err)
}

func TestRenderDrawsBordersAndTitle(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 80, 24)
	err := s.Render(pipeline.Snapshot{RadarRange: 1000})
	require.NoError(t, err)

	mainc, _, _, _ := s.screen.(tcell.SimulationScreen).GetContent(0, 0)
	assert.NotEqual(t, rune(0), mainc)
}

func TestDrawAlertsAppliesDeadband(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 80, 24)
	snap := pipeline.Snapshot{
		Alerts: []collision.Alert{{A: "a", B: "b", Risk: 0.50}},
	}
	s.drawAlerts(1, 1, 40, 5, snap)
	assert.InDelta(t, 0.50, s.lastRisk[alertKey{A: "a", B: "b"}], 1e-9)

	// a small fluctuation within the deadband should not move the
	// displayed value.
	snap.Alerts[0].Risk = 0.52
	s.drawAlerts(1, 1, 40, 5, snap)
	assert.InDelta(t, 0.50, s.lastRisk[alertKey{A: "a", B: "b"}], 1e-9)

	// a jump past the deadband should update it.
	snap.Alerts[0].Risk = 0.90
	s.drawAlerts(1, 1, 40, 5, snap)
	assert.InDelta(t, 0.90, s.lastRisk[alertKey{A: "a", B: "b"}], 1e-9)
}

func TestDrawAlertsPrunesStaleKeys(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 80, 24)
	s.lastRisk[alertKey{A: "x", B: "y"}] = 0.3

	s.drawAlerts(1, 1, 40, 5, pipeline.Snapshot{})
	_, ok := s.lastRisk[alertKey{A: "x", B: "y"}]
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "abc", truncate("abcdef", 3))
	assert.Equal(t, "ab", truncate("ab", 10))
	assert.Equal(t, "", truncate("ab", 0))
}

func TestPollQuitOnQKey(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 80, 24)
	s.events <- tcell.NewEventKey(tcell.KeyRune, 'q', tcell.ModNone)

	quit, err := s.PollQuit(50 * time.Millisecond)
	require.NoError(t, err)
	assert.True(t, quit)
}

func TestPollQuitTimesOutWithoutEvent(t *testing.T) {
	t.Parallel()

	s := newTestScreen(t, 80, 24)
	quit, err := s.PollQuit(10 * time.Millisecond)
	require.NoError(t, err)
	assert.False(t, quit)
}
