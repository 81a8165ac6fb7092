// Package admission couples the probabilistic scalable Bloom filter with an
// exact, small "seen-n-times" promotion buffer, producing a tri-state
// admission decision for each inbound identifier. It exists to suppress
// single-packet noise that a bare Bloom filter would otherwise admit into
// the simulation on first sight.
package admission
