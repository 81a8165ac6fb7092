// Package track holds per-id aircraft state: position, velocity, altitude,
// current grid cell, last-seen time, and a bounded ring of recent
// positions. Tracks are created by the first in-range update for an id and
// removed by pruning or blacklisting; see internal/simulator/collision for
// the lifecycle that drives this package.
package track
