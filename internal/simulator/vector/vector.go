// Package vector provides the 2D position/velocity arithmetic shared by the
// spatial grid, the track store, and the collision engine's CPA estimator.
package vector

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// Vector2D is an immutable 2D point or displacement, in meters or meters
// per second depending on context.
type Vector2D struct {
	X, Y float64
}

// New returns a Vector2D with the given components.
func New(x, y float64) Vector2D {
	return Vector2D{X: x, Y: y}
}

// Add returns v + other.
func (v Vector2D) Add(other Vector2D) Vector2D {
	return Vector2D{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns v - other.
func (v Vector2D) Sub(other Vector2D) Vector2D {
	return Vector2D{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale returns v multiplied by a scalar.
func (v Vector2D) Scale(s float64) Vector2D {
	return Vector2D{X: v.X * s, Y: v.Y * s}
}

// Dot returns the dot product of v and other.
func (v Vector2D) Dot(other Vector2D) float64 {
	return v.X*other.X + v.Y*other.Y
}

// LengthSq returns |v|^2.
func (v Vector2D) LengthSq() float64 {
	return v.X*v.X + v.Y*v.Y
}

// Length returns |v|.
func (v Vector2D) Length() float64 {
	return math.Sqrt(v.LengthSq())
}

// DistanceSq returns |v - other|^2.
func (v Vector2D) DistanceSq(other Vector2D) float64 {
	return v.Sub(other).LengthSq()
}

// Distance returns |v - other|.
func (v Vector2D) Distance(other Vector2D) float64 {
	return math.Sqrt(v.DistanceSq(other))
}

// AddNoise returns v perturbed by independent uniform noise in
// [-magnitude, +magnitude] on each axis.
func (v Vector2D) AddNoise(magnitude float64) Vector2D {
	u := distuv.Uniform{Min: -magnitude, Max: magnitude}
	return Vector2D{X: v.X + u.Rand(), Y: v.Y + u.Rand()}
}
