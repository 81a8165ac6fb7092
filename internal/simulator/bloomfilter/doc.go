// Package bloomfilter implements the admission filter's probabilistic
// membership layer: a single partitioned Bloom layer, and a scalable
// stack of layers that adds a larger, tighter-FPR layer on overflow.
//
// Neither type here gives certainty of membership — only "definitely
// not present" or "probably present." The admission package layers an
// exact promotion buffer on top to compensate; see
// internal/simulator/admission.
package bloomfilter
