// Package bitperm compiles a masked-swap/rotate permutation descriptor into
// a concrete bit-to-bit wiring map.
package bitperm

import (
	"errors"
	"fmt"

	"github.com/robert-at-pretension-io/odogen/internal/cipher"
)

var ErrNotBijective = errors.New("bitperm: permutation is not a bijection")

// Map is a resolved bit permutation: output bit o is fed by input bit
// Source[o].
type Map struct {
	Source []int `json:"source"`
}

// Geometry is the state shape a descriptor is resolved against.
type Geometry struct {
	WordBits   int
	StateWords int
	Shuffle    int
}

// GeometryOf extracts the resolver geometry from a spec.
func GeometryOf(spec *cipher.Spec) Geometry {
	return Geometry{WordBits: spec.WordBits, StateWords: spec.StateWords, Shuffle: spec.Shuffle}
}

// Bits returns the state width.
func (g Geometry) Bits() int {
	return g.WordBits * g.StateWords
}

// Trace follows input bit j through every subround and returns the output
// bit it lands on.
//
// Per subround: a set mask bit swaps the bit into the paired word; every
// subround but the last then shuffles words by the multiplier and rotates
// bits that land in even words.
func Trace(p cipher.Pbox, g Geometry, j int) int {
	word, bit := j/g.WordBits, j%g.WordBits
	last := p.Subrounds() - 1
	for r, masks := range p.Masks {
		if (masks[word/2]>>uint(bit))&1 != 0 {
			word ^= 1
		}
		if r < last {
			word = word * g.Shuffle % g.StateWords
			if word%2 == 0 {
				bit = (bit + p.Rotations[r][word/2]) % g.WordBits
			}
		}
	}
	return word*g.WordBits + bit
}

// Resolve traces every input bit and inverts the result into a Map. It
// fails with ErrNotBijective when two inputs land on the same output.
func Resolve(p cipher.Pbox, g Geometry) (Map, error) {
	if g.WordBits <= 0 || g.WordBits > 64 || g.StateWords <= 0 || g.StateWords%2 != 0 {
		return Map{}, fmt.Errorf("bitperm: invalid geometry %d words x %d bits", g.StateWords, g.WordBits)
	}
	if g.Shuffle < 1 || g.Shuffle >= g.StateWords {
		return Map{}, fmt.Errorf("%w: shuffle %d outside 1..%d", cipher.ErrPermutation, g.Shuffle, g.StateWords-1)
	}
	if err := checkShape(p, g); err != nil {
		return Map{}, err
	}

	n := g.Bits()
	source := make([]int, n)
	for i := range source {
		source[i] = -1
	}
	for j := 0; j < n; j++ {
		out := Trace(p, g, j)
		if source[out] != -1 {
			return Map{}, fmt.Errorf("%w: inputs %d and %d both drive output %d", ErrNotBijective, source[out], j, out)
		}
		source[out] = j
	}
	m := Map{Source: source}
	if err := m.Check(); err != nil {
		return Map{}, err
	}
	return m, nil
}

// ResolveSpec resolves both permutation descriptors of a spec.
func ResolveSpec(spec *cipher.Spec) ([]Map, error) {
	g := GeometryOf(spec)
	maps := make([]Map, len(spec.Permutations))
	for i, p := range spec.Permutations {
		m, err := Resolve(p, g)
		if err != nil {
			return nil, fmt.Errorf("permutation %d: %w", i, err)
		}
		maps[i] = m
	}
	return maps, nil
}

func checkShape(p cipher.Pbox, g Geometry) error {
	pairs := g.StateWords / 2
	if p.Subrounds() == 0 || len(p.Rotations) < p.Subrounds()-1 {
		return fmt.Errorf("%w: %d subrounds with %d rotation rows", cipher.ErrPermutation, p.Subrounds(), len(p.Rotations))
	}
	for r, row := range p.Masks {
		if len(row) != pairs {
			return fmt.Errorf("%w: subround %d has %d masks for %d pairs", cipher.ErrPermutation, r, len(row), pairs)
		}
	}
	for r := 0; r < p.Subrounds()-1; r++ {
		if len(p.Rotations[r]) != pairs {
			return fmt.Errorf("%w: subround %d has %d rotations for %d pairs", cipher.ErrPermutation, r, len(p.Rotations[r]), pairs)
		}
	}
	return nil
}

// Check verifies the map is a permutation of [0, len(Source)).
func (m Map) Check() error {
	seen := make([]bool, len(m.Source))
	for out, in := range m.Source {
		if in < 0 || in >= len(m.Source) {
			return fmt.Errorf("%w: output %d fed by out-of-range input %d", ErrNotBijective, out, in)
		}
		if seen[in] {
			return fmt.Errorf("%w: input %d used twice", ErrNotBijective, in)
		}
		seen[in] = true
	}
	return nil
}

// Inverse returns the map from input bit to output bit.
func (m Map) Inverse() Map {
	dest := make([]int, len(m.Source))
	for out, in := range m.Source {
		dest[in] = out
	}
	return Map{Source: dest}
}
