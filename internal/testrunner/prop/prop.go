// Package prop is a small property checker: it runs a predicate over
// generated inputs on a worker pool and shrinks the first counterexample.
package prop

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand"
	"runtime"
	"testing"
	"time"
)

// Generator produces a value of type T from a PRNG and a size hint.
type Generator[T any] func(r *rand.Rand, size int) T

// Shrinker produces candidate smaller values that may still fail.
type Shrinker[T any] func(v T) []T

// Property is a predicate over generated inputs.
type Property[A any] func(a A) bool

// Options control property checking.
type Options struct {
	Trials          int           // number of trials
	Seed            int64         // random seed; 0 means time.Now().UnixNano()
	Size            int           // size hint for generators
	Parallelism     int           // number of workers; <=0 means GOMAXPROCS
	MaxShrinkRounds int           // limit for shrinking attempts
	MaxShrinkTime   time.Duration // wall time limit for shrinking; 0 to disable
}

func (o *Options) defaults() {
	if o.Trials <= 0 {
		o.Trials = 200
	}
	if o.Seed == 0 {
		o.Seed = time.Now().UnixNano()
	}
	if o.Size <= 0 {
		o.Size = 30
	}
	if o.Parallelism <= 0 {
		o.Parallelism = max(runtime.GOMAXPROCS(0), 1)
	}
	if o.MaxShrinkRounds <= 0 {
		o.MaxShrinkRounds = 200
	}
}

// Result is the outcome of a property check.
type Result struct {
	PassedTrials int
	Failed       bool
	FailingInput any
	ShrunkInput  any
	Seed         int64
	Duration     time.Duration
	ShrinkRounds int
}

// ForAll checks prop against opts.Trials generated inputs. Every trial
// derives its own seed from opts.Seed, so a failure is reproducible from
// the seed alone. shrink may be nil.
func ForAll[A any](gen Generator[A], shrink Shrinker[A], prop Property[A], opts Options) Result {
	start := time.Now()
	opts.defaults()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		a  A
		ok bool
	}
	trials := make(chan int)
	outs := make(chan outcome)

	for w := 0; w < opts.Parallelism; w++ {
		go func() {
			for idx := range trials {
				r := rand.New(rand.NewSource(deriveSeed(opts.Seed, idx)))
				a := gen(r, opts.Size)
				select {
				case outs <- outcome{a: a, ok: prop(a)}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(trials)
		for i := 0; i < opts.Trials; i++ {
			select {
			case trials <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	res := Result{Seed: opts.Seed}
	for done := 0; done < opts.Trials; done++ {
		o := <-outs
		if o.ok {
			res.PassedTrials++
			continue
		}
		res.Failed = true
		res.FailingInput = o.a
		cancel()
		if shrink != nil {
			res.ShrunkInput, res.ShrinkRounds = shrinkFailure(o.a, shrink, prop, opts)
		}
		break
	}
	res.Duration = time.Since(start)
	return res
}

// shrinkFailure greedily replaces the counterexample with the first
// smaller candidate that still fails.
func shrinkFailure[A any](best A, shrink Shrinker[A], prop Property[A], opts Options) (A, int) {
	var deadline time.Time
	if opts.MaxShrinkTime > 0 {
		deadline = time.Now().Add(opts.MaxShrinkTime)
	}
	rounds := 0
	for rounds < opts.MaxShrinkRounds {
		if !deadline.IsZero() && time.Now().After(deadline) {
			break
		}
		progressed := false
		for _, c := range shrink(best) {
			if !prop(c) {
				best = c
				progressed = true
				break
			}
		}
		rounds++
		if !progressed {
			break
		}
	}
	return best, rounds
}

// Require fails t when res holds a counterexample.
func Require(t testing.TB, res Result, what string) {
	t.Helper()
	if res.Failed {
		t.Fatalf("%s: seed=%d input=%v shrunk=%v (%d rounds)",
			what, res.Seed, res.FailingInput, res.ShrunkInput, res.ShrinkRounds)
	}
}

// deriveSeed deterministically mixes the base seed with the trial index.
func deriveSeed(base int64, idx int) int64 {
	var b [16]byte
	binary.LittleEndian.PutUint64(b[0:8], uint64(base))
	binary.LittleEndian.PutUint64(b[8:16], uint64(idx))
	h := sha256.Sum256(b[:])
	return int64(binary.LittleEndian.Uint64(h[0:8]))
}
