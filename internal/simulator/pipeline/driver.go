package pipeline

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/actsim/internal/simulator/admission"
	"github.com/banshee-data/actsim/internal/simulator/collision"
	"github.com/banshee-data/actsim/internal/simulator/debug"
	"github.com/banshee-data/actsim/internal/simulator/track"
	"github.com/banshee-data/actsim/internal/simulator/vector"
)

const (
	DefaultTickInterval  = 100 * time.Millisecond
	DefaultPruneInterval = 5 * time.Second
	DefaultMaxAge        = 300 * time.Second

	// drainLimit is the maximum number of queued packets the main loop
	// applies per frame before rendering, keeping the UI responsive under
	// bursty input.
	drainLimit = 1000

	// packetQueueSize bounds the single-producer/single-consumer channel
	// between the stdin reader goroutine and the main loop.
	packetQueueSize = 4096

	// quitPollInterval is the terminal-event poll cadence.
	quitPollInterval = 16 * time.Millisecond

	// DefaultDebugOutputDir is where debug-mode track-field snapshots and
	// the end-of-run summary are written.
	DefaultDebugOutputDir = "debug-output"

	runSummaryFilename = "run-summary.html"
)

// Config parameterizes a Driver. Zero-value fields take the documented
// defaults.
type Config struct {
	Scale         float64
	TickInterval  time.Duration
	PruneInterval time.Duration
	MaxAge        time.Duration
	Threshold     int
	Center        vector.Vector2D

	// DebugOutputDir receives the debug-mode PNG track-field snapshots
	// (one per prune) and the end-of-run HTML summary. Empty takes
	// DefaultDebugOutputDir. Unused unless debug logging is enabled.
	DebugOutputDir string
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = DefaultTickInterval
	}
	if c.PruneInterval <= 0 {
		c.PruneInterval = DefaultPruneInterval
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.Threshold <= 0 {
		c.Threshold = admission.DefaultThreshold
	}
	if c.DebugOutputDir == "" {
		c.DebugOutputDir = DefaultDebugOutputDir
	}
	return c
}

// Driver owns the admission manager and collision engine and drives the
// ingest -> admit -> update -> tick -> render cycle over wall-clock
// cadences. Each Driver carries a run ID so that concurrent `simulate`
// invocations (e.g. replaying several recordings side by side) can be told
// apart in debug diagnostics.
type Driver struct {
	runID uuid.UUID
	cfg   Config

	admission *admission.Manager
	engine    *collision.Engine

	lastTick  time.Time
	lastPrune time.Time
	metrics   collision.AppMetrics
}

// NewDriver creates a Driver with the given configuration, applying
// defaults for any zero-value fields.
func NewDriver(cfg Config) *Driver {
	cfg = cfg.withDefaults()
	now := time.Now()
	return &Driver{
		runID:     uuid.New(),
		cfg:       cfg,
		admission: admission.NewManagerWithThreshold(cfg.Threshold),
		engine:    collision.New(cfg.Scale),
		lastTick:  now,
		lastPrune: now,
	}
}

// RunID returns the driver's correlation ID, included in every debug log
// line this driver emits.
func (d *Driver) RunID() string { return d.runID.String() }

// Admission returns the driver's admission manager.
func (d *Driver) Admission() *admission.Manager { return d.admission }

// Engine returns the driver's collision engine.
func (d *Driver) Engine() *collision.Engine { return d.engine }

// HandlePacket admits one packet and, on any non-Pending result, forwards
// it to the collision engine. Packets for a currently blacklisted id are
// dropped before admission is even consulted.
func (d *Driver) HandlePacket(pkt Packet, now time.Time) (result admission.Result, dropped bool) {
	id := pkt.Key()
	if d.engine.Blacklisted(id) {
		return admission.Pending, true
	}

	result = d.admission.Admit(id)
	if result != admission.Pending {
		d.engine.HandleUpdate(id, vector.New(pkt.PX, pkt.PY), vector.New(pkt.VX, pkt.VY), pkt.Alt, now)
	}
	return result, false
}

// MaybeTick fires CheckCollisions if the tick interval has elapsed since
// the last tick, recording the result in the driver's run metrics.
func (d *Driver) MaybeTick(now time.Time) bool {
	if now.Sub(d.lastTick) < d.cfg.TickInterval {
		return false
	}
	start := time.Now()
	pairs := d.engine.CheckCollisions()
	elapsed := time.Since(start)
	top := collision.TopRisk(d.engine)
	d.metrics.RecordTick(pairs, top, elapsed)
	d.lastTick = now

	debug.Debugf("pipeline[%s]: tick pairs=%d top_risk=%.3f elapsed=%s", d.runID, pairs, top, elapsed)
	return true
}

// MaybePrune fires Prune on both the collision engine and the admission
// manager if the prune interval has elapsed since the last prune. On a
// fire, it also logs the top-10 ranked alerts to the debug stream and
// writes a track-field PNG snapshot to DebugOutputDir, both only when
// debug logging is enabled.
func (d *Driver) MaybePrune(now time.Time) bool {
	if now.Sub(d.lastPrune) < d.cfg.PruneInterval {
		return false
	}
	d.engine.Prune(d.cfg.MaxAge, d.cfg.Center, now)
	d.admission.Prune(d.cfg.MaxAge)
	d.lastPrune = now

	if debug.Enabled() {
		alerts := collision.RankedAlerts(d.engine, 10)
		debug.Debugf("pipeline[%s]: prune complete, %d ranked alert(s)", d.runID, len(alerts))
		for _, a := range alerts {
			tti := "-"
			if a.TTI != nil {
				tti = fmt.Sprintf("%.1fs", *a.TTI)
			}
			debug.Debugf("pipeline[%s]: alert %s<->%s dist=%.0fm tti=%s risk=%.1f%% blacklisted=%v",
				d.runID, a.A, a.B, a.Dist, tti, a.Risk*100, a.Blacklisted)
		}
		if err := collision.WriteDebugPNG(d.engine, d.cfg.DebugOutputDir); err != nil {
			debug.Debugf("pipeline[%s]: write debug snapshot: %v", d.runID, err)
		}
	}
	return true
}

// WriteRunSummary writes the end-of-run HTML summary of this driver's
// accumulated tick metrics to DebugOutputDir. A no-op unless debug logging
// is enabled; intended to be called once after the run loop returns.
func (d *Driver) WriteRunSummary() error {
	return collision.WriteRunSummaryHTML(&d.metrics, filepath.Join(d.cfg.DebugOutputDir, runSummaryFilename))
}

// Snapshot is a read-only view of the driver's state, handed to the
// `simulate` renderer once per frame. The renderer must not mutate any of
// its fields.
type Snapshot struct {
	RunID      string
	Tracks     []*track.Track
	Collisions map[collision.PairKey]collision.RiskRecord
	Blacklist  map[string]struct{}
	Admission  admission.Stats
	Metrics    collision.AppMetrics
	RadarRange float64
	Alerts     []collision.Alert
}

// Snapshot collects a point-in-time, read-only copy of the driver's state.
func (d *Driver) Snapshot() Snapshot {
	return Snapshot{
		RunID:      d.runID.String(),
		Tracks:     d.engine.Tracks().All(),
		Collisions: d.engine.Collisions(),
		Blacklist:  d.engine.Blacklist(),
		Admission:  d.admission.Stats(),
		Metrics:    d.metrics,
		RadarRange: d.engine.RadarRange(),
		Alerts:     collision.RankedAlerts(d.engine, 10),
	}
}

// Renderer is the `simulate` subcommand's UI contract: it receives
// read-only snapshots and must not mutate them, and reports
// whether the user has asked to quit. internal/simulator/ui implements
// this over a tcell terminal screen; tests may use a stub.
type Renderer interface {
	Render(Snapshot) error
	PollQuit(timeout time.Duration) (quit bool, err error)
	Close() error
}

// RunFilter implements the `filter` subcommand: the admission manager run
// standalone against raw stdin lines (not JSON). Each
// line is admitted verbatim; a Promoted result prints "NEW:\t<id>", a
// Trusted result prints "MATCH:\t<id> (Est. FPR: <pct>)", and a Pending
// result prints nothing.
func (d *Driver) RunFilter(r io.Reader, w io.Writer) error {
	bw := bufio.NewWriter(w)
	defer bw.Flush()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		id := string(line)

		switch d.admission.Admit(id) {
		case admission.Promoted:
			fmt.Fprintf(bw, "NEW:\t%s\n", id)
		case admission.Trusted:
			fmt.Fprintf(bw, "MATCH:\t%s (Est. FPR: %.4f%%)\n", id, d.admission.Stats().EstFPR*100)
		case admission.Pending:
			// not yet admitted; no output.
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pipeline: read stdin: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("pipeline: write stdout: %w", err)
	}
	return nil
}

// RunSimulate implements the `simulate` subcommand's main loop: a reader
// goroutine parses line-delimited JSON off r and hands packets to the main
// loop over a bounded channel; the main loop drains up to 1000 packets per
// frame, fires any elapsed tick/prune timer, and renders through renderer.
// It returns when the input is exhausted, the renderer reports a quit
// event, or ctx is canceled. An I/O failure reading stdin is returned as a
// non-nil error so the caller can exit nonzero.
func (d *Driver) RunSimulate(ctx context.Context, r io.Reader, renderer Renderer) error {
	defer renderer.Close()

	packets := make(chan Packet, packetQueueSize)
	readErr := make(chan error, 1)

	go func() {
		defer close(packets)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			pkt, err := ParsePacket(line)
			if err != nil {
				continue
			}
			select {
			case packets <- pkt:
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	d.lastTick = time.Now()
	d.lastPrune = time.Now()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		ingestDone := false
	drain:
		for i := 0; i < drainLimit; i++ {
			select {
			case pkt, ok := <-packets:
				if !ok {
					ingestDone = true
					break drain
				}
				d.HandlePacket(pkt, time.Now())
			default:
				break drain
			}
		}

		now := time.Now()
		d.MaybeTick(now)
		d.MaybePrune(now)

		if err := renderer.Render(d.Snapshot()); err != nil {
			return fmt.Errorf("pipeline: render: %w", err)
		}

		quit, err := renderer.PollQuit(quitPollInterval)
		if err != nil {
			return fmt.Errorf("pipeline: poll terminal events: %w", err)
		}
		if quit {
			return nil
		}

		if ingestDone {
			// The reader goroutine skips the readErr send when it exits via
			// ctx cancellation, so wait on both.
			select {
			case err := <-readErr:
				if err != nil {
					return fmt.Errorf("pipeline: read stdin: %w", err)
				}
			case <-ctx.Done():
			}
			return nil
		}
	}
}
