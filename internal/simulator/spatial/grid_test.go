package spatial

import (
	"testing"

	"github.com/banshee-data/actsim/internal/simulator/vector"
	"github.com/stretchr/testify/assert"
)

func TestToCoordAcrossQuadrants(t *testing.T) {
	t.Parallel()

	g := New(8)

	assert.Equal(t, Coord{0, 0}, g.ToCoord(vector.New(5, 7)))
	assert.Equal(t, Coord{-1, 0}, g.ToCoord(vector.New(-5, 7)))
	assert.Equal(t, Coord{0, -1}, g.ToCoord(vector.New(5, -7)))
	assert.Equal(t, Coord{-1, -1}, g.ToCoord(vector.New(-5, -7)))
}

func TestInsertBuckets(t *testing.T) {
	t.Parallel()

	g := New(8)
	g.Insert("P1", vector.New(5, 7))
	g.Insert("P2", vector.New(5, 7))
	g.Insert("P3", vector.New(-9, -9))

	assert.Len(t, g.buckets[Coord{0, 0}], 2)
	assert.Len(t, g.buckets[Coord{-2, -2}], 1)
}

func TestNeighborsExcludesSelfAndOutOfRange(t *testing.T) {
	t.Parallel()

	g := New(8)
	g.Insert("P1", vector.New(5, 7))
	g.Insert("P2", vector.New(5, 7))
	g.Insert("P3", vector.New(-9, -9))
	g.Insert("P4", vector.New(9, 9))

	got := g.Neighbors("P1", vector.New(1, 1))
	assert.ElementsMatch(t, []string{"P2", "P4"}, got)
}

func TestClearEmptiesAllBuckets(t *testing.T) {
	t.Parallel()

	g := New(8)
	g.Insert("P1", vector.New(1, 1))
	g.Clear()

	assert.Empty(t, g.Neighbors("", vector.New(1, 1)))
}
