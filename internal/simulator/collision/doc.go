// Package collision maintains the live aircraft track set against a
// spatial grid index and continuously evaluates pairwise short-horizon
// collision risk via a Monte-Carlo closest-point-of-approach estimator.
// It also owns the track/blacklist lifecycle: tracks enter on their first
// in-range update and leave on pruning or on an imminent-conflict
// blacklist entry.
//
// Both HandleUpdate and CheckCollisions are total functions of their
// inputs: neither ever returns an error, and every edge case (near-zero
// relative velocity, CPA outside the horizon, out-of-range position)
// degrades to "no effect" or "no collision" rather than failing.
package collision
