package bloomfilter

import (
	"hash/maphash"
	"time"
)

// Layer is a single partitioned Bloom filter: a bit array of Size bits,
// split into K equal partitions (one per hash). Inserting an element sets
// exactly one bit per partition, so a single insert always sets exactly K
// bits in a fresh layer.
type Layer struct {
	bits          []byte
	size          int
	k             int
	layer         int
	partitionSize int
	createdAt     time.Time
	seed          maphash.Seed
}

// NewLayer creates a Layer of the given bit size with k hash partitions.
// layerIndex is a 1-based salt that decorrelates this layer's hashing from
// every other layer in a ScalableFilter stack. size is rounded so it
// divides evenly by k; callers that need the exact size back should read
// it from Size().
func NewLayer(size, k, layerIndex int) *Layer {
	if k < 1 {
		k = 1
	}
	partitionSize := size / k
	if partitionSize < 1 {
		partitionSize = 1
	}
	total := partitionSize * k

	return &Layer{
		bits:          make([]byte, (total+7)>>3),
		size:          total,
		k:             k,
		layer:         layerIndex,
		partitionSize: partitionSize,
		createdAt:     time.Now(),
		seed:          maphash.MakeSeed(),
	}
}

// Size returns the bit-array size of the layer (a multiple of K).
func (l *Layer) Size() int { return l.size }

// K returns the number of hash partitions.
func (l *Layer) K() int { return l.k }

// CreatedAt returns the layer's creation time, used for age-based pruning.
func (l *Layer) CreatedAt() time.Time { return l.createdAt }

// bitIndex computes idx(x, partition) = partition*partitionSize +
// H(x, partition, layer) mod partitionSize, mixing the partition index and
// the layer salt into the hash so that partitions within a layer, and
// layers within a stack, are decorrelated.
func (l *Layer) bitIndex(x string, partition int) int {
	var h maphash.Hash
	h.SetSeed(l.seed)
	h.WriteString(x)
	var buf [16]byte
	putInt(buf[0:8], partition)
	putInt(buf[8:16], l.layer)
	h.Write(buf[:])
	return partition*l.partitionSize + int(h.Sum64()%uint64(l.partitionSize))
}

func putInt(b []byte, v int) {
	u := uint64(v)
	for i := 0; i < 8; i++ {
		b[i] = byte(u >> (8 * i))
	}
}

// Insert sets the K bits for x, one per partition. Idempotent.
func (l *Layer) Insert(x string) {
	for i := 0; i < l.k; i++ {
		idx := l.bitIndex(x, i)
		l.bits[idx>>3] |= 1 << uint(idx&7)
	}
}

// Contains reports whether all K bits for x are set. May false-positive;
// never false-negative for an x that was Inserted.
func (l *Layer) Contains(x string) bool {
	for i := 0; i < l.k; i++ {
		idx := l.bitIndex(x, i)
		if l.bits[idx>>3]&(1<<uint(idx&7)) == 0 {
			return false
		}
	}
	return true
}

// FillRatio returns the fraction of bits currently set.
func (l *Layer) FillRatio() float64 {
	set := 0
	for _, b := range l.bits {
		set += popcount(b)
	}
	return float64(set) / float64(l.size)
}

func popcount(b byte) int {
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}
