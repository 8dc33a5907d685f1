// Package bloom implements a concurrency-safe Bloom filter.
//
// The filter answers membership with "never added" or "probably added",
// trading a configurable false-positive rate for constant space. It sits
// in front of cache locks, where a definite miss is the common case and
// skipping the lock acquisition is the win.
//
// Bit positions come from Kirsch-Mitzenmacher double hashing,
// position(i) = h1 + i*h2 mod m, so one 128-bit digest stands in for k
// independent hash functions.
package bloom

import (
	"encoding/binary"
	"errors"
	"hash/fnv"
	"math"
	"math/bits"
	"sync"
)

var (
	// ErrNoElements rejects sizing for zero expected elements.
	ErrNoElements = errors.New("bloom: expected element count must be positive")

	// ErrRateOutOfRange rejects false-positive rates outside (0, 1).
	ErrRateOutOfRange = errors.New("bloom: false-positive rate must be inside (0, 1)")
)

// Filter is a fixed-size Bloom filter, safe for concurrent use.
type Filter struct {
	mu     sync.RWMutex
	words  []uint64
	nbits  uint
	hashes uint
	added  uint
}

// NewWithEstimates sizes a filter for n expected elements at false-positive
// rate fp, using the optimal formulas m = -n*ln(fp)/ln(2)^2 and
// k = m/n*ln(2).
func NewWithEstimates(n uint, fp float64) (*Filter, error) {
	if n == 0 {
		return nil, ErrNoElements
	}

	if fp <= 0 || fp >= 1 {
		return nil, ErrRateOutOfRange
	}

	nbits := uint(math.Ceil(-float64(n) * math.Log(fp) / (math.Ln2 * math.Ln2)))

	hashes := uint(math.Round(float64(nbits) / float64(n) * math.Ln2))
	if hashes < 1 {
		hashes = 1
	}

	return &Filter{
		words:  make([]uint64, (nbits+63)/64),
		nbits:  nbits,
		hashes: hashes,
	}, nil
}

// Bits returns the bit-array size.
func (f *Filter) Bits() uint { return f.nbits }

// Hashes returns the number of bit positions derived per element.
func (f *Filter) Hashes() uint { return f.hashes }

// Add marks data as present.
func (f *Filter) Add(data []byte) {
	h1, h2 := digest(data)

	f.mu.Lock()
	for i := range f.hashes {
		pos := (h1 + uint64(i)*h2) % uint64(f.nbits)
		f.words[pos/64] |= 1 << (pos % 64)
	}

	f.added++
	f.mu.Unlock()
}

// Test reports whether data might have been added. False is definitive;
// true is wrong with probability at most the configured rate.
func (f *Filter) Test(data []byte) bool {
	h1, h2 := digest(data)

	f.mu.RLock()
	defer f.mu.RUnlock()

	for i := range f.hashes {
		pos := (h1 + uint64(i)*h2) % uint64(f.nbits)
		if f.words[pos/64]&(1<<(pos%64)) == 0 {
			return false
		}
	}

	return true
}

// EstimatedCount returns how many Add calls the filter has absorbed,
// counting duplicates.
func (f *Filter) EstimatedCount() uint {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.added
}

// FillRatio returns the fraction of set bits, a saturation measure.
func (f *Filter) FillRatio() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	set := 0
	for _, word := range f.words {
		set += bits.OnesCount64(word)
	}

	return float64(set) / float64(f.nbits)
}

// Reset clears every bit, keeping the allocation.
func (f *Filter) Reset() {
	f.mu.Lock()
	clear(f.words)
	f.added = 0
	f.mu.Unlock()
}

// digest splits an FNV-128a sum into the two base hashes. The second is
// forced odd so its stride stays coprime with even bit-array sizes.
func digest(data []byte) (h1, h2 uint64) {
	h := fnv.New128a()
	_, _ = h.Write(data)
	sum := h.Sum(nil)

	return binary.BigEndian.Uint64(sum[:8]), binary.BigEndian.Uint64(sum[8:]) | 1
}
