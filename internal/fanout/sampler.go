package fanout

import (
	"math"
	"math/rand/v2"
	"sync"
)

// Sampler draws the temperature for one request unit.
type Sampler interface {
	Temperature() float64
}

// UniformSampler draws temperatures uniformly from [0, 1] rounded to one
// decimal place.
type UniformSampler struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewUniformSampler(seed uint64) *UniformSampler {
	return &UniformSampler{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (s *UniformSampler) Temperature() float64 {
	s.mu.Lock()
	v := s.rng.Float64()
	s.mu.Unlock()
	return roundTenth(v)
}

func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// FixedSampler returns the same temperature for every unit.
type FixedSampler float64

func (f FixedSampler) Temperature() float64 {
	return float64(f)
}
