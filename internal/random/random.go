package random

import (
	"math"

	"pgregory.net/rand"
)

// Source draws the random values the generator needs.
// It is not safe for concurrent use.
type Source struct {
	rng *rand.Rand
}

// New returns a Source. With no seed it is seeded from the runtime.
func New(seed ...uint64) *Source {
	return &Source{rng: rand.New(seed...)}
}

// Float returns a uniform value in [min, max] rounded to dp decimal places.
func (s *Source) Float(min, max float64, dp int) float64 {
	v := s.rng.Float64()*(max-min) + min
	return Round(v, dp)
}

// Int returns a uniform integer in [min, max], both inclusive.
func (s *Source) Int(min, max int) int {
	if max <= min {
		return min
	}
	span := uint64(max) - uint64(min) + 1
	if span == 0 {
		// full int range
		return int(s.rng.Uint64())
	}
	return int(uint64(min) + s.rng.Uint64n(span))
}

// Round rounds v half away from zero to dp decimal places.
func Round(v float64, dp int) float64 {
	p := math.Pow10(dp)
	return math.Round(v*p) / p
}
