package bitperm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/odogen/internal/cipher"
)

func zeroPbox(subrounds, pairs int) cipher.Pbox {
	p := cipher.Pbox{Masks: make([][]uint64, subrounds), Rotations: make([][]int, subrounds-1)}
	for r := range p.Masks {
		p.Masks[r] = make([]uint64, pairs)
	}
	for r := range p.Rotations {
		p.Rotations[r] = make([]int, pairs)
	}
	return p
}

func TestResolveDerivedSpecsAreBijective(t *testing.T) {
	for _, seed := range []uint32{0, 1, 2, 1234567, 0xffffffff} {
		spec := cipher.Derive(seed)
		maps, err := ResolveSpec(spec)
		require.NoError(t, err, "seed %d", seed)
		require.Len(t, maps, cipher.PermutationCount)
		for i, m := range maps {
			require.Len(t, m.Source, spec.DigestBits)
			assert.NoError(t, m.Check(), "seed %d permutation %d", seed, i)
		}
	}
}

func TestResolveIdentity(t *testing.T) {
	g := Geometry{WordBits: 8, StateWords: 4, Shuffle: 1}
	m, err := Resolve(zeroPbox(3, 2), g)
	require.NoError(t, err)
	for o, i := range m.Source {
		assert.Equal(t, o, i)
	}
}

func TestTraceByHand(t *testing.T) {
	g := Geometry{WordBits: 8, StateWords: 4, Shuffle: 3}
	p := zeroPbox(2, 2)
	p.Masks[0][0] = 0x01
	p.Rotations[0] = []int{2, 5}

	// bit 0 of word 0 swaps into word 1, shuffles to word 3, no rotation.
	assert.Equal(t, 24, Trace(p, g, 0))
	// bit 1 of word 0 stays, shuffles to word 0, rotates by 2.
	assert.Equal(t, 3, Trace(p, g, 1))
	// bit 0 of word 1 swaps into word 0, rotates by 2.
	assert.Equal(t, 2, Trace(p, g, 8))

	m, err := Resolve(p, g)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Source[24])
	assert.Equal(t, 1, m.Source[3])
	assert.Equal(t, 8, m.Source[2])
}

func TestResolveNonBijectiveShuffle(t *testing.T) {
	// Multiplier 2 is not invertible mod 4, so words collapse.
	g := Geometry{WordBits: 8, StateWords: 4, Shuffle: 2}
	_, err := Resolve(zeroPbox(2, 2), g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotBijective), "got %v", err)
}

func TestResolveMalformedDescriptor(t *testing.T) {
	g := Geometry{WordBits: 8, StateWords: 4, Shuffle: 1}
	p := zeroPbox(2, 2)
	p.Masks[1] = p.Masks[1][:1]
	_, err := Resolve(p, g)
	assert.True(t, errors.Is(err, cipher.ErrPermutation), "got %v", err)

	_, err = Resolve(cipher.Pbox{}, g)
	assert.True(t, errors.Is(err, cipher.ErrPermutation), "got %v", err)
}

func TestResolveRejectsShuffleOutOfRange(t *testing.T) {
	for _, shuffle := range []int{-1, 0, 4, 9} {
		g := Geometry{WordBits: 8, StateWords: 4, Shuffle: shuffle}
		_, err := Resolve(zeroPbox(2, 2), g)
		assert.True(t, errors.Is(err, cipher.ErrPermutation), "shuffle %d: got %v", shuffle, err)
	}
}

// apply permutes a bit vector: out[o] = in[m.Source[o]].
func apply(m Map, in []bool) []bool {
	out := make([]bool, len(m.Source))
	for o, i := range m.Source {
		out[o] = in[i]
	}
	return out
}

func TestInverseAndApply(t *testing.T) {
	spec := cipher.Derive(5)
	m, err := Resolve(spec.Permutations[0], GeometryOf(spec))
	require.NoError(t, err)

	inv := m.Inverse()
	require.NoError(t, inv.Check())
	for o, i := range m.Source {
		assert.Equal(t, o, inv.Source[i])
	}

	in := make([]bool, spec.DigestBits)
	in[17] = true
	out := apply(m, in)
	assert.True(t, out[inv.Source[17]])
	count := 0
	for _, b := range out {
		if b {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestCheckRejectsDuplicates(t *testing.T) {
	assert.True(t, errors.Is(Map{Source: []int{0, 0, 2}}.Check(), ErrNotBijective))
	assert.True(t, errors.Is(Map{Source: []int{0, 3, 1}}.Check(), ErrNotBijective))
	assert.NoError(t, Map{Source: []int{2, 0, 1}}.Check())
}
