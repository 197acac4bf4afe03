// Package cipher holds the structural description of the iterated
// permutation the generator pipelines: state geometry, substitution
// tables, bit-permutation descriptors, rotation amounts and round keys.
//
// A Spec is produced elsewhere (from a numeric seed or a spec file) and is
// treated as an immutable input. Nothing in this repository mutates a Spec
// after Validate has accepted it.
package cipher

import (
	"errors"
	"fmt"
)

// PermutationCount is the number of bit-permutation descriptors in a round.
const PermutationCount = 2

var (
	ErrGeometry    = errors.New("cipher: inconsistent state geometry")
	ErrTableSize   = errors.New("cipher: substitution table size is not a power of two")
	ErrTableLayout = errors.New("cipher: substitution tables do not tile the state")
	ErrTableEntry  = errors.New("cipher: substitution table entry wider than its address")
	ErrPermutation = errors.New("cipher: malformed permutation descriptor")
	ErrRotation    = errors.New("cipher: rotation amount out of range")
	ErrRoundKeys   = errors.New("cipher: malformed round key table")
)

// Pbox describes one multi-subround masked-swap/rotate bit permutation.
//
// Masks has one row per subround and one 64-bit mask per word pair; bit b
// of Masks[r][g] swaps bit b between words 2g and 2g+1. Rotations has one
// row fewer than Masks: the final subround only swaps.
type Pbox struct {
	Masks     [][]uint64 `json:"masks"`
	Rotations [][]int    `json:"rotations"`
}

// Subrounds returns the number of subrounds in the descriptor.
func (p Pbox) Subrounds() int {
	return len(p.Masks)
}

// Spec is the read-only structural description of the cipher.
type Spec struct {
	DigestBits   int        `json:"digest_bits"`
	WordBits     int        `json:"word_bits"`
	StateWords   int        `json:"state_words"`
	Rounds       int        `json:"rounds"`
	SmallSboxes  [][]uint16 `json:"small_sboxes"`
	LargeSboxes  [][]uint16 `json:"large_sboxes"`
	Permutations []Pbox     `json:"permutations"`
	Shuffle      int        `json:"shuffle"`
	Rotations    []int      `json:"rotations"`
	RoundKeys    []uint64   `json:"round_keys"`
}

// Pairs returns the number of word pairs in the state.
func (s *Spec) Pairs() int {
	return s.StateWords / 2
}

// SmallPerWord returns how many small substitution groups cover one word.
func (s *Spec) SmallPerWord() int {
	if s.StateWords == 0 {
		return 0
	}
	return len(s.SmallSboxes) / s.StateWords
}

// SmallWidth returns the address (and data) width of the small tables.
func (s *Spec) SmallWidth() (int, error) {
	if len(s.SmallSboxes) == 0 {
		return 0, fmt.Errorf("%w: no small tables", ErrTableLayout)
	}
	return AddressWidth(len(s.SmallSboxes[0]))
}

// LargeWidth returns the address (and data) width of the large tables.
func (s *Spec) LargeWidth() (int, error) {
	if len(s.LargeSboxes) == 0 {
		return 0, fmt.Errorf("%w: no large tables", ErrTableLayout)
	}
	return AddressWidth(len(s.LargeSboxes[0]))
}

// AddressWidth returns log2(entries) for a table with an exact power-of-two
// entry count. Any other count is a cipher-definition defect and reported
// as ErrTableSize.
func AddressWidth(entries int) (int, error) {
	if entries <= 0 {
		return 0, fmt.Errorf("%w: %d entries", ErrTableSize, entries)
	}
	width := 0
	for 1<<width < entries {
		width++
	}
	if 1<<width != entries {
		return 0, fmt.Errorf("%w: %d entries", ErrTableSize, entries)
	}
	return width, nil
}

// Validate checks every structural invariant the emitter relies on. It
// never looks at table contents beyond range checks.
func (s *Spec) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil spec", ErrGeometry)
	}
	if s.Rounds <= 0 {
		return fmt.Errorf("%w: rounds must be positive, got %d", ErrGeometry, s.Rounds)
	}
	if s.WordBits <= 0 || s.WordBits > 64 {
		return fmt.Errorf("%w: word width %d outside 1..64", ErrGeometry, s.WordBits)
	}
	if s.StateWords <= 0 || s.StateWords%2 != 0 {
		return fmt.Errorf("%w: state must hold a positive even number of words, got %d", ErrGeometry, s.StateWords)
	}
	if s.DigestBits != s.WordBits*s.StateWords {
		return fmt.Errorf("%w: digest %d bits != %d words x %d bits", ErrGeometry, s.DigestBits, s.StateWords, s.WordBits)
	}
	if err := s.validateTables(); err != nil {
		return err
	}
	if err := s.validatePermutations(); err != nil {
		return err
	}
	if len(s.Rotations) == 0 {
		return fmt.Errorf("%w: empty rotation list", ErrRotation)
	}
	for i, r := range s.Rotations {
		if r <= 0 || r >= s.WordBits {
			return fmt.Errorf("%w: rotation %d is %d, want 1..%d", ErrRotation, i, r, s.WordBits-1)
		}
	}
	if len(s.RoundKeys) != s.Rounds {
		return fmt.Errorf("%w: %d keys for %d rounds", ErrRoundKeys, len(s.RoundKeys), s.Rounds)
	}
	if s.StateWords < 64 {
		limit := uint64(1) << s.StateWords
		for i, k := range s.RoundKeys {
			if k >= limit {
				return fmt.Errorf("%w: key %d (%#x) wider than %d bits", ErrRoundKeys, i, k, s.StateWords)
			}
		}
	}
	return nil
}

func (s *Spec) validateTables() error {
	small, err := tableSetWidth("small", s.SmallSboxes)
	if err != nil {
		return err
	}
	large, err := tableSetWidth("large", s.LargeSboxes)
	if err != nil {
		return err
	}
	if len(s.LargeSboxes) != s.StateWords {
		return fmt.Errorf("%w: %d large tables for %d words", ErrTableLayout, len(s.LargeSboxes), s.StateWords)
	}
	if len(s.SmallSboxes)%s.StateWords != 0 {
		return fmt.Errorf("%w: %d small tables do not divide over %d words", ErrTableLayout, len(s.SmallSboxes), s.StateWords)
	}
	perWord := s.SmallPerWord()
	if perWord == 0 || perWord%2 != 0 {
		return fmt.Errorf("%w: %d small groups per word, want a positive even count", ErrTableLayout, perWord)
	}
	if covered := s.StateWords * perWord * (small + large); covered != s.DigestBits {
		return fmt.Errorf("%w: groups cover %d bits of a %d-bit state", ErrTableLayout, covered, s.DigestBits)
	}
	return nil
}

func tableSetWidth(kind string, tables [][]uint16) (int, error) {
	if len(tables) == 0 {
		return 0, fmt.Errorf("%w: no %s tables", ErrTableLayout, kind)
	}
	width := -1
	for i, table := range tables {
		w, err := AddressWidth(len(table))
		if err != nil {
			return 0, fmt.Errorf("%s table %d: %w", kind, i, err)
		}
		if w == 0 {
			return 0, fmt.Errorf("%w: %s table %d has a single entry and no address bits", ErrTableLayout, kind, i)
		}
		if width >= 0 && w != width {
			return 0, fmt.Errorf("%w: %s table %d is %d bits wide, table 0 is %d", ErrTableLayout, kind, i, w, width)
		}
		width = w
		for j, v := range table {
			if int(v)>>w != 0 {
				return 0, fmt.Errorf("%w: %s table %d entry %d is %#x", ErrTableEntry, kind, i, j, v)
			}
		}
	}
	return width, nil
}

func (s *Spec) validatePermutations() error {
	if len(s.Permutations) != PermutationCount {
		return fmt.Errorf("%w: %d descriptors, want %d", ErrPermutation, len(s.Permutations), PermutationCount)
	}
	if s.Shuffle <= 0 || s.Shuffle >= s.StateWords {
		return fmt.Errorf("%w: shuffle multiplier %d outside 1..%d", ErrPermutation, s.Shuffle, s.StateWords-1)
	}
	pairs := s.Pairs()
	for i, p := range s.Permutations {
		if p.Subrounds() == 0 {
			return fmt.Errorf("%w: descriptor %d has no subrounds", ErrPermutation, i)
		}
		if len(p.Rotations) != p.Subrounds()-1 {
			return fmt.Errorf("%w: descriptor %d has %d rotation rows for %d subrounds", ErrPermutation, i, len(p.Rotations), p.Subrounds())
		}
		for r, row := range p.Masks {
			if len(row) != pairs {
				return fmt.Errorf("%w: descriptor %d subround %d has %d masks, want %d", ErrPermutation, i, r, len(row), pairs)
			}
		}
		for r, row := range p.Rotations {
			if len(row) != pairs {
				return fmt.Errorf("%w: descriptor %d subround %d has %d rotations, want %d", ErrPermutation, i, r, len(row), pairs)
			}
			for g, amount := range row {
				if amount < 0 || amount >= s.WordBits {
					return fmt.Errorf("%w: descriptor %d subround %d group %d rotates by %d", ErrPermutation, i, r, g, amount)
				}
			}
		}
	}
	return nil
}
