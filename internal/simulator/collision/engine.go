package collision

import (
	"math"
	"runtime"
	"sync"
	"time"

	"github.com/banshee-data/actsim/internal/simulator/debug"
	"github.com/banshee-data/actsim/internal/simulator/spatial"
	"github.com/banshee-data/actsim/internal/simulator/track"
	"github.com/banshee-data/actsim/internal/simulator/vector"
)

const (
	// DefaultScale is the radar's operating scale in meters; radar range and
	// the prune distance are both derived from it.
	DefaultScale = 200000.0

	// MaxSpeed and Lookahead bound the safety buffer added to the radar
	// range so that a fast, currently-out-of-radar track cannot enter the
	// collision radius before its next update is seen.
	MaxSpeed  = 250.0
	Lookahead = 30.0

	// CollisionRadius is the separation below which two tracks are
	// considered coincident for CPA purposes and eligible for blacklisting.
	CollisionRadius = 150.0

	// MonteCarloTrials is the number of perturbed-velocity samples drawn per
	// pair evaluation in cpaRisk.
	MonteCarloTrials = 1000

	// NoiseBase is the minimum per-axis velocity noise magnitude, in m/s,
	// used by cpaRisk regardless of lookahead.
	NoiseBase = 5.0

	// riskDiscardThreshold is the floor below which a pair's risk is
	// dropped from the collision map entirely rather than reported as a
	// near-zero alert.
	riskDiscardThreshold = 0.01

	collisionRadiusSq = CollisionRadius * CollisionRadius
)

// PairKey canonically identifies an unordered pair of track ids, always
// with A < B lexicographically.
type PairKey struct {
	A, B string
}

// RiskRecord is the outcome of one cpaRisk evaluation for a pair: a
// probability in [0,1] and, when any Monte-Carlo trial hit, the mean
// predicted time to closest approach.
type RiskRecord struct {
	Risk float64
	TTI  *float64
}

// Engine owns the live track set, the spatial index used to narrow
// pairwise checks, the current collision map, and the proximity
// blacklist. It is driven by a single owning goroutine (see
// internal/simulator/pipeline); CheckCollisions internally parallelizes
// the pairwise scan but never mutates engine state until the scan
// completes.
type Engine struct {
	scale          float64
	radarRangeSq   float64
	safetyBufferSq float64

	tracks     *track.Store
	grid       *spatial.Grid
	blacklist  map[string]struct{}
	collisions map[PairKey]RiskRecord
}

// New creates an Engine with the given operating scale in meters. A
// non-positive scale falls back to DefaultScale.
func New(scale float64) *Engine {
	if scale <= 0 {
		scale = DefaultScale
	}
	radarRange := scale * 0.2
	safetyBuffer := 2 * MaxSpeed * Lookahead
	return &Engine{
		scale:          scale,
		radarRangeSq:   radarRange * radarRange,
		safetyBufferSq: safetyBuffer * safetyBuffer,
		tracks:         track.NewStore(),
		grid:           spatial.New(spatial.DefaultCellSize),
		blacklist:      make(map[string]struct{}),
		collisions:     make(map[PairKey]RiskRecord),
	}
}

// Tracks returns the engine's track store.
func (e *Engine) Tracks() *track.Store {
	return e.tracks
}

// RadarRange returns the engine's radar radius in meters (the square root
// of radarRangeSq), for UI layout and canvas bounds.
func (e *Engine) RadarRange() float64 {
	return math.Sqrt(e.radarRangeSq)
}

// Blacklisted reports whether id was observed at sub-collision-radius
// separation by any CheckCollisions since the last Prune, which clears the
// blacklist.
func (e *Engine) Blacklisted(id string) bool {
	_, ok := e.blacklist[id]
	return ok
}

// Blacklist returns a snapshot copy of the current proximity blacklist.
func (e *Engine) Blacklist() map[string]struct{} {
	out := make(map[string]struct{}, len(e.blacklist))
	for id := range e.blacklist {
		out[id] = struct{}{}
	}
	return out
}

// Collisions returns a snapshot copy of the current collision map.
func (e *Engine) Collisions() map[PairKey]RiskRecord {
	out := make(map[PairKey]RiskRecord, len(e.collisions))
	for k, v := range e.collisions {
		out[k] = v
	}
	return out
}

// HandleUpdate admits a position/velocity report for id. Reports outside
// the radar range plus safety buffer drop any existing track for id and
// create none; all other reports upsert the track.
func (e *Engine) HandleUpdate(id string, p, v vector.Vector2D, alt float64, now time.Time) {
	if p.LengthSq() > e.radarRangeSq+e.safetyBufferSq {
		e.tracks.Remove(id)
		return
	}
	e.tracks.Upsert(id, p, v, alt, now)
}

// CheckCollisions rebuilds the spatial index from the current track set,
// evaluates CPA risk for every pair within radar range of at least one
// endpoint, and replaces the collision map with the surviving results.
// Surviving pairs at sub-collision-radius separation are added to the
// blacklist; pairs discarded for low risk (such as altitude-separated
// ones) are not.
// It returns the total number of pairs evaluated, including ones later
// discarded for low risk.
func (e *Engine) CheckCollisions() int {
	e.grid.Clear()
	all := e.tracks.All()
	for _, t := range all {
		c := e.grid.ToCoord(t.Position)
		t.SetGridCoord(c)
		e.grid.Insert(t.ID, t.Position)
	}

	byID := make(map[string]*track.Track, len(all))
	inRange := make([]*track.Track, 0, len(all))
	for _, t := range all {
		byID[t.ID] = t
		if t.Position.LengthSq() <= e.radarRangeSq {
			inRange = append(inRange, t)
		}
	}
	inRangeSet := make(map[string]struct{}, len(inRange))
	for _, t := range inRange {
		inRangeSet[t.ID] = struct{}{}
	}

	pairs := e.scanPairs(inRange, inRangeSet, byID)

	merged := make(map[PairKey]RiskRecord, len(pairs))
	for _, pr := range pairs {
		if pr.Record.Risk <= riskDiscardThreshold {
			continue
		}
		merged[pr.Key] = pr.Record
		if pr.DistSq < collisionRadiusSq {
			e.blacklist[pr.Key.A] = struct{}{}
			e.blacklist[pr.Key.B] = struct{}{}
		}
	}
	e.collisions = merged

	debug.Debugf("check_collisions: %d in-range, %d pairs evaluated, %d survived, blacklist=%d",
		len(inRange), len(pairs), len(merged), len(e.blacklist))

	return len(pairs)
}

// Prune removes blacklisted ids, tracks unseen within maxAge, and tracks
// farther than the engine's scale from center; clears the blacklist; and
// drops any collision whose endpoints no longer exist.
func (e *Engine) Prune(maxAge time.Duration, center vector.Vector2D, now time.Time) {
	blacklisted := e.blacklist
	e.blacklist = make(map[string]struct{})

	e.tracks.RemoveIf(func(t *track.Track) bool {
		if _, bad := blacklisted[t.ID]; bad {
			return false
		}
		if now.Sub(t.LastSeen) > maxAge {
			return false
		}
		if t.Position.Distance(center) > e.scale {
			return false
		}
		return true
	})

	for key := range e.collisions {
		if e.tracks.Get(key.A) == nil || e.tracks.Get(key.B) == nil {
			delete(e.collisions, key)
		}
	}

	debug.Debugf("prune: %d tracks remain, %d collisions remain", e.tracks.Len(), len(e.collisions))
}

type pairResult struct {
	Key    PairKey
	Record RiskRecord
	DistSq float64
}

// scanPairs evaluates every unordered pair with at least one endpoint in
// inRange, splitting the outer track set across a worker pool. Each
// unordered pair is evaluated exactly once: a neighbor that is itself
// in-range and lexicographically smaller is skipped here because it will
// (or already did) drive the same pair from its own outer iteration.
func (e *Engine) scanPairs(inRange []*track.Track, inRangeSet map[string]struct{}, byID map[string]*track.Track) []pairResult {
	if len(inRange) == 0 {
		return nil
	}

	numWorkers := runtime.NumCPU()
	if numWorkers > len(inRange) {
		numWorkers = len(inRange)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	chunks := make([][]*track.Track, numWorkers)
	for i, t := range inRange {
		w := i % numWorkers
		chunks[w] = append(chunks[w], t)
	}

	var wg sync.WaitGroup
	resultsCh := make(chan []pairResult, numWorkers)
	for _, chunk := range chunks {
		chunk := chunk
		wg.Add(1)
		go func() {
			defer wg.Done()
			var local []pairResult
			for _, a := range chunk {
				for _, nbID := range e.grid.Neighbors(a.ID, a.Position) {
					if _, inR := inRangeSet[nbID]; inR && nbID < a.ID {
						continue
					}
					b, ok := byID[nbID]
					if !ok {
						continue
					}
					local = append(local, evaluatePair(a, b))
				}
			}
			resultsCh <- local
		}()
	}
	wg.Wait()
	close(resultsCh)

	var all []pairResult
	for r := range resultsCh {
		all = append(all, r...)
	}
	return all
}

func evaluatePair(a, b *track.Track) pairResult {
	if a.ID > b.ID {
		a, b = b, a
	}
	key := PairKey{A: a.ID, B: b.ID}
	distSq := a.Position.DistanceSq(b.Position)

	if a.Altitude != b.Altitude {
		return pairResult{Key: key, Record: RiskRecord{Risk: 0}, DistSq: distSq}
	}
	risk, tti := cpaRisk(a.Position, a.Velocity, b.Position, b.Velocity)
	return pairResult{Key: key, Record: RiskRecord{Risk: risk, TTI: tti}, DistSq: distSq}
}

// cpaRisk estimates collision probability and mean time-to-closest-approach
// between two tracks via Monte-Carlo perturbation of their velocities.
func cpaRisk(p1, v1, p2, v2 vector.Vector2D) (float64, *float64) {
	dp := p1.Sub(p2)
	if dp.LengthSq() <= collisionRadiusSq {
		zero := 0.0
		return 1.0, &zero
	}

	// tHat negates the clamped ratio, so it is never positive: an
	// approaching pair (negative dp.dv0) clamps to zero and a receding pair
	// goes negative. Either way sigmaScaled stays at NoiseBase.
	dv0 := v1.Sub(v2)
	var tHat float64
	if dv0Sq := dv0.LengthSq(); dv0Sq > 1e-9 {
		tHat = -clamp(dp.Dot(dv0)/dv0Sq, 0, Lookahead)
	}
	sigmaScaled := math.Max(NoiseBase, NoiseBase*(1+0.5*tHat))

	hits := 0
	var sumT float64
	for i := 0; i < MonteCarloTrials; i++ {
		pv1 := v1.AddNoise(sigmaScaled)
		pv2 := v2.AddNoise(sigmaScaled)
		dv := pv1.Sub(pv2)
		dvSq := dv.LengthSq()
		if dvSq <= 1e-3 {
			continue
		}
		t := -dp.Dot(dv) / dvSq
		if t <= 0 || t >= Lookahead {
			continue
		}
		closest := dp.Add(dv.Scale(t))
		if closest.LengthSq() < collisionRadiusSq {
			hits++
			sumT += t
		}
	}

	risk := float64(hits) / float64(MonteCarloTrials)
	if hits == 0 {
		return risk, nil
	}
	mean := sumT / float64(hits)
	return risk, &mean
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
