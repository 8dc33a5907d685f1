package isoforest

// splitmix64 is a fast, non-cryptographic PRNG seeded from configuration so
// forest construction is reproducible. It avoids math/rand which triggers
// gosec G404.
type splitmix64 struct {
	state uint64
}

// splitmix64 mixing constants.
const (
	splitmixInc    = 0x9e3779b97f4a7c15
	splitmixMix1   = 0xbf58476d1ce4e5b9
	splitmixMix2   = 0x94d049bb133111eb
	splitmixShift1 = 30
	splitmixShift2 = 27
	splitmixShift3 = 31
)

// next returns the next pseudo-random uint64.
func (r *splitmix64) next() uint64 {
	r.state += splitmixInc

	z := r.state
	z = (z ^ (z >> splitmixShift1)) * splitmixMix1
	z = (z ^ (z >> splitmixShift2)) * splitmixMix2

	return z ^ (z >> splitmixShift3)
}

// float64Bits is the divisor mapping 53 random bits onto [0, 1).
const float64Bits = 1 << 53

// float64 returns a pseudo-random float64 in [0, 1).
func (r *splitmix64) float64() float64 {
	return float64(r.next()>>11) / float64(float64Bits)
}

// intn returns a pseudo-random int in [0, n).
func (r *splitmix64) intn(n int) int {
	return int(r.next()>>1) % n
}

// sample draws size values without replacement via a partial Fisher-Yates
// shuffle of the index space. When values has at most size elements it is
// returned as is.
func (r *splitmix64) sample(values []float64, size int) []float64 {
	if len(values) <= size {
		return values
	}

	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}

	out := make([]float64, size)

	for i := range size {
		j := i + r.intn(len(values)-i)
		idx[i], idx[j] = idx[j], idx[i]
		out[i] = values[idx[i]]
	}

	return out
}
