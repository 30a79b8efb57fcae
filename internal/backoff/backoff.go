// Package backoff computes capped, decorrelated-jitter retry delays.
//
// The relay uses it to re-drive admissions parked by the wait policy when no
// slot-freed signal arrives in time.
package backoff

import (
	rand "math/rand/v2"
	"sync"
	"time"
)

// DefaultBase is the first delay used when Policy.Base is not positive.
const DefaultBase = 5 * time.Millisecond

// Policy describes the delay progression.
type Policy struct {
	// Base is the first and minimum delay.
	Base time.Duration

	// Max caps every delay. Zero disables the cap.
	Max time.Duration

	// Multiplier scales the previous delay to bound the next one. Values below 1 mean no growth.
	Multiplier float64
}

// Next returns the delay following prev.
//
// The next delay is drawn uniformly from [Base, prev*Multiplier) and then capped by Max.
// A non-positive prev starts the sequence at Base.
//
// Parameters:
//   - prev: Previous delay, or 0 for the first attempt
//   - rng: Jitter source; nil uses the package-level generator
//
// Returns:
//   - time.Duration: Next delay, never below min(Base, Max)
func (p Policy) Next(prev time.Duration, rng *rand.Rand) time.Duration {
	base := p.Base
	if base <= 0 {
		base = DefaultBase
	}
	mult := p.Multiplier
	if mult < 1.0 {
		mult = 1.0
	}
	if p.Max > 0 && p.Max < base {
		return p.Max
	}
	if prev <= 0 {
		return base
	}

	span := time.Duration(float64(prev)*mult) - base
	if span <= 0 {
		span = base
	}

	var jitter int64
	if rng != nil {
		jitter = rng.Int64N(int64(span))
	} else {
		jitter = rand.Int64N(int64(span)) //nolint:gosec // non-crypto backoff jitter
	}

	next := base + time.Duration(jitter)
	if p.Max > 0 && next > p.Max {
		return p.Max
	}

	return next
}

// NewRNG returns a deterministic generator for a non-zero seed, or nil for seed 0.
//
//nolint:gosec
func NewRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	s1 := uint64(seed)
	s2 := s1 ^ 0x9e3779b97f4a7c15

	return rand.New(rand.NewPCG(s1, s2))
}

// Sequence is a goroutine-safe stateful delay generator.
type Sequence struct {
	mu     sync.Mutex
	policy Policy
	rng    *rand.Rand
	prev   time.Duration
}

// NewSequence creates a sequence for policy, seeded when seed is non-zero.
func NewSequence(policy Policy, seed int64) *Sequence {
	return &Sequence{policy: policy, rng: NewRNG(seed)}
}

// Next advances the sequence and returns the new delay.
func (s *Sequence) Next() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.prev = s.policy.Next(s.prev, s.rng)

	return s.prev
}

// Reset restarts the sequence at Base.
func (s *Sequence) Reset() {
	s.mu.Lock()
	s.prev = 0
	s.mu.Unlock()
}
