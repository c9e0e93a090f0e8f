package prop

import (
	"bytes"
	"testing"
	"time"

	"github.com/practos/practos/internal/testrunner/assert"
)

func TestForAllPasses(t *testing.T) {
	res := ForAll(GenBytes(), nil, func(b []byte) bool {
		c := append([]byte(nil), b...)
		return bytes.Equal(b, c)
	}, Options{Trials: 100})
	Require(t, res, "copy")
	assert.Equal(t, res.PassedTrials, 100)
}

func TestForAllShrinksCounterexample(t *testing.T) {
	gen := GenSlice(GenUint32(1000))
	shrink := ShrinkSlice[uint32](ShrinkUint32)
	res := ForAll(gen, shrink, func(xs []uint32) bool {
		for _, x := range xs {
			if x >= 10 {
				return false
			}
		}
		return true
	}, Options{Trials: 200, Seed: 7, MaxShrinkTime: 2 * time.Second})

	assert.True(t, res.Failed)
	shrunk, ok := res.ShrunkInput.([]uint32)
	assert.True(t, ok)
	assert.Len(t, shrunk, 1)
	assert.True(t, shrunk[0] >= 10)
}

func TestSeedIsReproducible(t *testing.T) {
	var first, second []int
	collect := func(dst *[]int) Property[int] {
		return func(v int) bool {
			*dst = append(*dst, v)
			return true
		}
	}
	opts := Options{Trials: 20, Seed: 42, Parallelism: 1}
	ForAll(GenIntn(1000), nil, collect(&first), opts)
	ForAll(GenIntn(1000), nil, collect(&second), opts)
	assert.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i], second[i])
	}
}

func TestGenOneOf(t *testing.T) {
	res := ForAll(GenOneOf("a", "b"), nil, func(s string) bool { return s == "a" || s == "b" }, Options{Trials: 50})
	Require(t, res, "one of")
}
