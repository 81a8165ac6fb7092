package pipeline

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/actsim/internal/simulator/admission"
	"github.com/banshee-data/actsim/internal/simulator/debug"
)

func TestHandlePacketAdmitsAndUpdatesTrack(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	now := time.Now()

	pkt := Packet{ID: "A", PX: 0, PY: 0, VX: 10, VY: 0, Alt: 0}
	result, dropped := d.HandlePacket(pkt, now)

	assert.False(t, dropped)
	assert.Equal(t, admission.Promoted, result)
	require.NotNil(t, d.Engine().Tracks().Get("A"))
}

func TestHandlePacketPendingDoesNotCreateTrack(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 3})
	now := time.Now()

	pkt := Packet{ID: "A", PX: 0, PY: 0}
	result, dropped := d.HandlePacket(pkt, now)

	assert.False(t, dropped)
	assert.Equal(t, admission.Pending, result)
	assert.Nil(t, d.Engine().Tracks().Get("A"))
}

func TestHandlePacketDropsBlacklistedID(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	now := time.Now()

	d.HandlePacket(Packet{ID: "A", PX: 0, PY: 0}, now)
	d.HandlePacket(Packet{ID: "B", PX: 100, PY: 0}, now)
	d.MaybeTick(now.Add(time.Hour))

	require.True(t, d.Engine().Blacklisted("A"))

	_, dropped := d.HandlePacket(Packet{ID: "A", PX: 0, PY: 0}, now)
	assert.True(t, dropped)
}

func TestMaybeTickOnlyFiresAfterInterval(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{TickInterval: time.Minute})
	start := d.lastTick

	assert.False(t, d.MaybeTick(start.Add(time.Second)))
	assert.True(t, d.MaybeTick(start.Add(time.Hour)))
	assert.Equal(t, 1, d.metrics.Ticks)
}

func TestMaybePruneOnlyFiresAfterInterval(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{PruneInterval: time.Minute, MaxAge: time.Hour})
	start := d.lastPrune

	assert.False(t, d.MaybePrune(start.Add(time.Second)))
	assert.True(t, d.MaybePrune(start.Add(time.Hour)))
}

// These two tests mutate the package-level debug logger and so cannot run
// in parallel with each other or with any test that depends on debug
// logging being disabled.

func TestMaybePruneWritesDebugSnapshotWhenEnabled(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	debug.SetLogger(&buf)
	defer debug.SetLogger(nil)

	d := NewDriver(Config{PruneInterval: time.Minute, MaxAge: time.Hour, DebugOutputDir: dir})
	d.HandlePacket(Packet{ID: "A", PX: 0, PY: 0}, time.Now())

	start := d.lastPrune
	require.True(t, d.MaybePrune(start.Add(time.Hour)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "expected MaybePrune to write a debug snapshot file")
}

func TestWriteRunSummaryWritesHTMLWhenDebugEnabled(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	debug.SetLogger(&buf)
	defer debug.SetLogger(nil)

	d := NewDriver(Config{DebugOutputDir: dir})
	d.MaybeTick(d.lastTick.Add(time.Hour))

	require.NoError(t, d.WriteRunSummary())

	_, err := os.Stat(filepath.Join(dir, runSummaryFilename))
	assert.NoError(t, err)
}

func TestRunFilterPromotionScenario(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 3})
	in := strings.NewReader("A\nA\nA\n")
	var out bytes.Buffer

	err := d.RunFilter(in, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 1)
	assert.Equal(t, "NEW:\tA", lines[0])
	assert.GreaterOrEqual(t, d.Admission().Stats().LayerCount, 1)
	assert.Equal(t, 0, d.Admission().Stats().PendingSize)
}

func TestRunFilterMatchAfterPromotion(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	in := strings.NewReader("A\nA\n")
	var out bytes.Buffer

	err := d.RunFilter(in, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "NEW:\tA", lines[0])
	assert.Contains(t, lines[1], "MATCH:\tA (Est. FPR:")
}

type fakeRenderer struct {
	renders int
	quitAt  int
}

func (f *fakeRenderer) Render(Snapshot) error { f.renders++; return nil }

func (f *fakeRenderer) PollQuit(time.Duration) (bool, error) {
	return f.quitAt > 0 && f.renders >= f.quitAt, nil
}

func (f *fakeRenderer) Close() error { return nil }

func TestRunSimulateDrainsPacketsAndQuits(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	in := strings.NewReader(`{"id":"A","px":0,"py":0,"vx":1,"vy":0,"alt":0}` + "\n")
	renderer := &fakeRenderer{quitAt: 1}

	err := d.RunSimulate(context.Background(), in, renderer)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, renderer.renders, 1)
}

func TestRunSimulateExitsOnEOF(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	in := strings.NewReader(`{"id":"A","px":0,"py":0,"vx":1,"vy":0,"alt":0}` + "\n")
	renderer := &fakeRenderer{}

	err := d.RunSimulate(context.Background(), in, renderer)
	require.NoError(t, err)
	require.NotNil(t, d.Engine().Tracks().Get("A"))
}

func TestRunSimulateHonorsContextCancellation(t *testing.T) {
	t.Parallel()

	d := NewDriver(Config{Threshold: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pr, pw := io.Pipe()
	defer pr.Close()
	defer pw.Close()

	err := d.RunSimulate(ctx, pr, &fakeRenderer{})
	require.NoError(t, err)
}
