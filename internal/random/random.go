// Package random provides the seeded pseudo-random source shared by network layers.
//
// Layers never own a Rand: it is created by the caller and lent to the
// network tree through InitWeights or SetRandomizer.
package random

import (
	"math"
	"math/rand"
)

// DefaultSeed is the seed used by New when callers have no preference.
const DefaultSeed int64 = 42

// Rand is a deterministic random number generator.
//
// A Rand is not safe for concurrent use.
type Rand struct {
	rng *rand.Rand
}

// New creates a Rand seeded with seed.
func New(seed int64) *Rand {
	return &Rand{
		rng: rand.New(rand.NewSource(seed)), //nolint:gosec // Deterministic seed for reproducible training
	}
}

// SetSeed resets the generator to the start of the sequence for seed.
func (r *Rand) SetSeed(seed int64) {
	r.rng.Seed(seed)
}

// IntRand returns a non-negative pseudo-random int32 in [0, math.MaxInt32].
func (r *Rand) IntRand() int32 {
	return int32(r.rng.Uint32() & math.MaxInt32) //nolint:gosec // G115: masked to 31 bits
}

// SignedRand returns a value uniformly distributed in [-scale, scale].
func (r *Rand) SignedRand(scale float64) float64 {
	return scale*2.0*float64(r.IntRand())/math.MaxInt32 - scale
}

// UnsignedRand returns a value uniformly distributed in [0, scale].
func (r *Rand) UnsignedRand(scale float64) float64 {
	return scale * float64(r.IntRand()) / math.MaxInt32
}
