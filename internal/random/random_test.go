package random

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRand_Deterministic(t *testing.T) {
	a := New(7)
	b := New(7)
	for i := 0; i < 100; i++ {
		assert.Equal(t, a.IntRand(), b.IntRand())
	}
}

func TestRand_SetSeedRestarts(t *testing.T) {
	r := New(DefaultSeed)
	first := []int32{r.IntRand(), r.IntRand(), r.IntRand()}

	r.SetSeed(DefaultSeed)
	for i, want := range first {
		assert.Equal(t, want, r.IntRand(), "draw %d", i)
	}
}

func TestRand_Ranges(t *testing.T) {
	r := New(1)
	for i := 0; i < 1000; i++ {
		assert.GreaterOrEqual(t, r.IntRand(), int32(0))

		s := r.SignedRand(0.5)
		assert.GreaterOrEqual(t, s, -0.5)
		assert.LessOrEqual(t, s, 0.5)

		u := r.UnsignedRand(2)
		assert.GreaterOrEqual(t, u, 0.0)
		assert.LessOrEqual(t, u, 2.0)
	}
}
