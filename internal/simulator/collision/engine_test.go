package collision

import (
	"testing"
	"time"

	"github.com/banshee-data/actsim/internal/simulator/vector"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCPARiskSelfPair(t *testing.T) {
	t.Parallel()

	p := vector.New(0, 0)
	v := vector.New(10, 0)
	risk, tti := cpaRisk(p, v, p, v)

	assert.Equal(t, 1.0, risk)
	require.NotNil(t, tti)
	assert.Equal(t, 0.0, *tti)
}

func TestCPARiskIdenticalVelocitySeparatedBeyondRadius(t *testing.T) {
	t.Parallel()

	p1 := vector.New(0, 0)
	p2 := vector.New(5000, 0)
	v := vector.New(50, 0)

	risk, _ := cpaRisk(p1, v, p2, v)
	assert.Less(t, risk, 0.05)
}

func TestHandleUpdateDropsOutOfRangeTrack(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("C", vector.New(1e9, 0), vector.New(0, 0), 0, now)

	assert.Nil(t, e.Tracks().Get("C"))
	assert.Equal(t, 0, e.Tracks().Len())
}

func TestHandleUpdateKeepsInRangeTrack(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("A", vector.New(0, 0), vector.New(10, 0), 0, now)

	require.NotNil(t, e.Tracks().Get("A"))
	assert.Equal(t, vector.New(0, 0), e.Tracks().Get("A").Position)
}

func TestCheckCollisionsHeadOnCollision(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("A", vector.New(0, 0), vector.New(100, 0), 0, now)
	e.HandleUpdate("B", vector.New(2000, 0), vector.New(-100, 0), 0, now)

	e.CheckCollisions()

	rec, ok := e.Collisions()[PairKey{A: "A", B: "B"}]
	require.True(t, ok, "expected (A,B) pair in collision map")
	assert.GreaterOrEqual(t, rec.Risk, 0.9)
	require.NotNil(t, rec.TTI)
	assert.InDelta(t, 10.0, *rec.TTI, 1.0)
}

func TestCheckCollisionsAltitudeMismatchForcesZeroRisk(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("A", vector.New(0, 0), vector.New(100, 0), 0, now)
	e.HandleUpdate("B", vector.New(2000, 0), vector.New(-100, 0), 100, now)

	e.CheckCollisions()

	rec, ok := e.Collisions()[PairKey{A: "A", B: "B"}]
	if ok {
		assert.Equal(t, 0.0, rec.Risk)
	}
}

func TestCheckCollisionsBlacklistsProximatePair(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("A", vector.New(0, 0), vector.New(0, 0), 0, now)
	e.HandleUpdate("B", vector.New(100, 0), vector.New(0, 0), 0, now)

	e.CheckCollisions()

	assert.True(t, e.Blacklisted("A"))
	assert.True(t, e.Blacklisted("B"))

	e.Prune(time.Hour, vector.New(0, 0), now)

	assert.Nil(t, e.Tracks().Get("A"))
	assert.Nil(t, e.Tracks().Get("B"))
	assert.False(t, e.Blacklisted("A"))
}

func TestPruneIsIdempotent(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()
	e.HandleUpdate("A", vector.New(0, 0), vector.New(10, 0), 0, now)

	e.Prune(time.Hour, vector.New(0, 0), now)
	afterFirst := e.Tracks().Len()
	e.Prune(time.Hour, vector.New(0, 0), now)
	afterSecond := e.Tracks().Len()

	assert.Equal(t, afterFirst, afterSecond)
}

func TestPruneDropsStaleTracks(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	e.HandleUpdate("A", vector.New(0, 0), vector.New(0, 0), 0, now.Add(-time.Hour))
	e.HandleUpdate("B", vector.New(0, 0), vector.New(0, 0), 0, now)

	e.Prune(time.Minute, vector.New(0, 0), now)

	assert.Nil(t, e.Tracks().Get("A"))
	require.NotNil(t, e.Tracks().Get("B"))
}

func TestCheckCollisionsRiskRecordForCoincidentTracks(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()

	// Identical positions put dp.LengthSq() at 0, short-circuiting cpaRisk's
	// Monte-Carlo sampling entirely, so the resulting RiskRecord is exact.
	e.HandleUpdate("A", vector.New(1000, 0), vector.New(20, 0), 0, now)
	e.HandleUpdate("B", vector.New(1000, 0), vector.New(-5, 0), 0, now)

	e.CheckCollisions()

	got, ok := e.Collisions()[PairKey{A: "A", B: "B"}]
	require.True(t, ok, "expected (A,B) pair in collision map")

	zero := 0.0
	want := RiskRecord{Risk: 1.0, TTI: &zero}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("RiskRecord mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckCollisionsEveryTrackInExactlyOneCell(t *testing.T) {
	t.Parallel()

	e := New(DefaultScale)
	now := time.Now()
	e.HandleUpdate("A", vector.New(0, 0), vector.New(0, 0), 0, now)
	e.HandleUpdate("B", vector.New(30000, 0), vector.New(0, 0), 0, now)

	e.CheckCollisions()

	for _, tr := range e.Tracks().All() {
		assert.Equal(t, e.grid.ToCoord(tr.Position), tr.GridCoord)
	}
}
