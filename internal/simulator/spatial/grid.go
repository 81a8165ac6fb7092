// Package spatial implements the uniform 2D bucket index used to narrow
// pairwise collision checks to nearby tracks instead of every track in the
// system.
package spatial

import (
	"math"

	"github.com/banshee-data/actsim/internal/simulator/vector"
)

// DefaultCellSize is chosen larger than the collision radius (150m) and the
// per-tick extrapolation distance (~30s at the 250 m/s max speed), so that
// any pair close enough to collide within the lookahead window cannot lie
// outside the 3x3 neighborhood of each track's cell.
const DefaultCellSize = 15000.0

// Coord is an integer grid cell coordinate. Equality and hashing are
// structural, so it can be used directly as a map key.
type Coord struct {
	X, Y int64
}

// Grid is a uniform 2D bucket index: cell coordinate -> ids currently in
// that cell. Duplicate ids within one bucket are allowed; callers own
// deduplication.
type Grid struct {
	cellSize float64
	buckets  map[Coord][]string
}

// New creates a Grid with the given cell size in meters.
func New(cellSize float64) *Grid {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return &Grid{
		cellSize: cellSize,
		buckets:  make(map[Coord][]string),
	}
}

// ToCoord derives the grid cell containing p.
func (g *Grid) ToCoord(p vector.Vector2D) Coord {
	return Coord{
		X: int64(math.Floor(p.X / g.cellSize)),
		Y: int64(math.Floor(p.Y / g.cellSize)),
	}
}

// Insert appends id to the bucket at p's cell.
func (g *Grid) Insert(id string, p vector.Vector2D) {
	c := g.ToCoord(p)
	g.buckets[c] = append(g.buckets[c], id)
}

// Clear empties every bucket.
func (g *Grid) Clear() {
	g.buckets = make(map[Coord][]string)
}

// Neighbors returns every id in the 3x3 block of buckets around p's cell,
// excluding any entry equal to excludeID. Iteration order across the 9
// cells is unspecified but stable within a single call.
func (g *Grid) Neighbors(excludeID string, p vector.Vector2D) []string {
	center := g.ToCoord(p)
	out := make([]string, 0, 8)
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			c := Coord{X: center.X + dx, Y: center.Y + dy}
			for _, id := range g.buckets[c] {
				if id != excludeID {
					out = append(out, id)
				}
			}
		}
	}
	return out
}
