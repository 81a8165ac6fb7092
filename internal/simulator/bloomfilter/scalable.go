package bloomfilter

import (
	"math"
	"time"
)

const (
	defaultTargetFPR      = 0.001
	defaultPartitionSize  = 2048
	defaultGrowthFactor   = 2
	defaultTighteningRate = 0.8
	// growthFillThreshold is the fill ratio of the newest layer above which
	// the next insert triggers growth of a new, tighter layer.
	growthFillThreshold = 0.5
)

// ScalableFilter is an ordered stack of Bloom Layers (oldest first) with
// FPR tightening on each new layer. Every added layer has growthFactor
// times the initial partition size per partition, so added layers differ
// in size only through their hash count; sizes do not compound. The stack
// is never empty: construction and Prune both guarantee at least one layer.
type ScalableFilter struct {
	layers          []*Layer
	targetFPR       float64
	partitionSize   int
	growthFactor    int
	tighteningRatio float64
	initialSize     int
	initialHashes   int
}

// NewScalableFilter creates a ScalableFilter with one initial layer sized
// for the default target false-positive rate.
func NewScalableFilter() *ScalableFilter {
	hashes := hashCountForFPR(defaultTargetFPR)
	initialSize := defaultPartitionSize * hashes

	f := &ScalableFilter{
		targetFPR:       defaultTargetFPR,
		partitionSize:   defaultPartitionSize,
		growthFactor:    defaultGrowthFactor,
		tighteningRatio: defaultTighteningRate,
		initialSize:     initialSize,
		initialHashes:   hashes,
	}
	f.layers = []*Layer{NewLayer(initialSize, hashes, 1)}
	return f
}

func hashCountForFPR(fpr float64) int {
	k := int(math.Ceil(-math.Log2(fpr)))
	if k < 1 {
		k = 1
	}
	return k
}

// Contains reports whether x is present in any layer. Short-circuits on
// the first match.
func (f *ScalableFilter) Contains(x string) bool {
	for _, l := range f.layers {
		if l.Contains(x) {
			return true
		}
	}
	return false
}

// Insert grows the stack if the newest layer is over half full, then
// inserts x into the newest layer.
func (f *ScalableFilter) Insert(x string) {
	last := f.layers[len(f.layers)-1]
	if last.FillRatio() > growthFillThreshold {
		f.targetFPR *= f.tighteningRatio
		hashes := hashCountForFPR(f.targetFPR)
		size := f.partitionSize * hashes * f.growthFactor
		f.layers = append(f.layers, NewLayer(size, hashes, len(f.layers)+1))
		last = f.layers[len(f.layers)-1]
	}
	last.Insert(x)
}

// FPR returns an online estimate of the cumulative false-positive rate:
// 1 - product over layers of (1 - 0.5^k).
func (f *ScalableFilter) FPR() float64 {
	product := 1.0
	for _, l := range f.layers {
		product *= 1 - math.Pow(0.5, float64(l.K()))
	}
	return 1 - product
}

// LayerCount returns the number of layers currently in the stack.
func (f *ScalableFilter) LayerCount() int {
	return len(f.layers)
}

// TotalBits returns the sum of bit-array sizes across all layers.
func (f *ScalableFilter) TotalBits() int {
	total := 0
	for _, l := range f.layers {
		total += l.Size()
	}
	return total
}

// FillRatio returns the fill ratio of the newest (most actively written)
// layer, the layer most representative of current write pressure.
func (f *ScalableFilter) FillRatio() float64 {
	if len(f.layers) == 0 {
		return 0
	}
	return f.layers[len(f.layers)-1].FillRatio()
}

// Prune discards every layer older than maxAge. If this empties the
// stack, a fresh initial layer is created to preserve the non-empty
// invariant.
func (f *ScalableFilter) Prune(maxAge time.Duration) {
	now := time.Now()
	kept := f.layers[:0:0]
	for _, l := range f.layers {
		if now.Sub(l.CreatedAt()) < maxAge {
			kept = append(kept, l)
		}
	}
	f.layers = kept
	if len(f.layers) == 0 {
		f.layers = []*Layer{NewLayer(f.initialSize, f.initialHashes, 1)}
	}
}
