// Package schedule computes how a fixed number of logical rounds is folded
// onto fewer physical round units for a requested throughput.
//
// For throughput T over R rounds:
//
//	unrolling  = ceil(R / T)
//	extraDelay = smallest d >= 0 with gcd(T, 2*unrolling + d) = 1
//	periods    = ceil(R / unrolling)
//	latency    = 2*R + (periods-1)*extraDelay + 1
//	periodBits = ceil(log2(periods)), 0 when periods = 1
//
// The lane cycle length 2*unrolling + extraDelay is kept coprime with T so
// that T interleaved items never read the same key slot in the same cycle.
package schedule

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidRounds           = errors.New("schedule: rounds must be positive")
	ErrInvalidThroughput       = errors.New("schedule: throughput must be positive")
	ErrThroughputExceedsRounds = errors.New("schedule: throughput exceeds round count")
)

// Params is the derived schedule for one (rounds, throughput) pair.
type Params struct {
	Rounds     int `json:"rounds"`
	Throughput int `json:"throughput"`
	Unrolling  int `json:"unrolling"`
	ExtraDelay int `json:"extra_delay"`
	Periods    int `json:"periods"`
	PeriodBits int `json:"period_bits"`
	Latency    int `json:"latency"`
}

// Compute derives the schedule. It fails for non-positive inputs and for a
// throughput larger than the round count, which would leave units idle.
func Compute(rounds, throughput int) (Params, error) {
	if rounds <= 0 {
		return Params{}, fmt.Errorf("%w: got %d", ErrInvalidRounds, rounds)
	}
	if throughput <= 0 {
		return Params{}, fmt.Errorf("%w: got %d", ErrInvalidThroughput, throughput)
	}
	if throughput > rounds {
		return Params{}, fmt.Errorf("%w: %d > %d", ErrThroughputExceedsRounds, throughput, rounds)
	}

	p := Params{Rounds: rounds, Throughput: throughput}
	p.Unrolling = CeilDiv(rounds, throughput)
	p.ExtraDelay = CoprimeOffset(throughput, 2*p.Unrolling)
	p.Periods = CeilDiv(rounds, p.Unrolling)
	p.Latency = 2*rounds + (p.Periods-1)*p.ExtraDelay + 1
	p.PeriodBits = BitWidth(p.Periods)
	return p, nil
}

// CeilDiv returns ceil(a / b) for a >= 0, b > 0.
func CeilDiv(a, b int) int {
	return (a + b - 1) / b
}

// GCD returns the greatest common divisor of two non-negative integers.
// GCD(0, 0) is 0.
func GCD(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// CoprimeOffset returns the smallest d >= 0 with gcd(n, base+d) = 1.
// n must be positive. The search stops within n steps: n consecutive
// integers cover every residue mod n, including 1.
func CoprimeOffset(n, base int) int {
	d := 0
	for GCD(n, base+d) != 1 {
		d++
	}
	return d
}

// BitWidth returns the number of bits needed to index n distinct values,
// i.e. ceil(log2(n)) for n >= 1. BitWidth(1) is 0.
func BitWidth(n int) int {
	bits := 0
	for 1<<bits < n {
		bits++
	}
	return bits
}

// CycleLength is the round trip of one lane through the loop, in cycles.
func (p Params) CycleLength() int {
	return 2*p.Unrolling + p.ExtraDelay
}

// StateSlots is the number of state registers in the loop delay chain.
func (p Params) StateSlots() int {
	return p.Unrolling + p.ExtraDelay
}

// UsesLookup reports whether per-unit key lookup tables are needed. With a
// single period every unit serves one fixed round and keys are literals.
func (p Params) UsesLookup() bool {
	return p.Periods > 1
}

// OutputUnit is the unit whose output carries the final round.
func (p Params) OutputUnit() int {
	return (p.Rounds - 1) % p.Unrolling
}

// UnitRounds lists the logical rounds served by unit i, in period order:
// i, i+unrolling, i+2*unrolling, ... below Rounds.
func (p Params) UnitRounds(unit int) []int {
	var rounds []int
	for r := unit; r < p.Rounds; r += p.Unrolling {
		rounds = append(rounds, r)
	}
	return rounds
}

// Coverage returns UnitRounds for every unit.
func (p Params) Coverage() [][]int {
	out := make([][]int, p.Unrolling)
	for i := range out {
		out[i] = p.UnitRounds(i)
	}
	return out
}

// Check verifies the schedule invariants: tight covering, coprime cycle
// length and exact round coverage.
func (p Params) Check() error {
	if p.Unrolling*p.Periods < p.Rounds {
		return fmt.Errorf("schedule: %d units x %d periods do not cover %d rounds", p.Unrolling, p.Periods, p.Rounds)
	}
	if (p.Periods-1)*p.Unrolling >= p.Rounds {
		return fmt.Errorf("schedule: %d periods is not tight for %d units over %d rounds", p.Periods, p.Unrolling, p.Rounds)
	}
	if g := GCD(p.Throughput, p.CycleLength()); g != 1 {
		return fmt.Errorf("schedule: cycle length %d shares factor %d with throughput %d", p.CycleLength(), g, p.Throughput)
	}
	seen := make([]bool, p.Rounds)
	for unit, rounds := range p.Coverage() {
		if len(rounds) > p.Periods {
			return fmt.Errorf("schedule: unit %d serves %d rounds in %d periods", unit, len(rounds), p.Periods)
		}
		for _, r := range rounds {
			if seen[r] {
				return fmt.Errorf("schedule: round %d assigned twice", r)
			}
			seen[r] = true
		}
	}
	for r, ok := range seen {
		if !ok {
			return fmt.Errorf("schedule: round %d never assigned", r)
		}
	}
	return nil
}
