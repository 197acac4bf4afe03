package cipher

// Reference geometry used by Derive.
const (
	RefDigestBits    = 640
	RefWordBits      = 64
	RefStateWords    = RefDigestBits / RefWordBits
	RefRounds        = 84
	RefSmallWidth    = 6
	RefLargeWidth    = 10
	RefSmallTables   = 40
	RefSubrounds     = 6
	RefShuffle       = 3
	RefRotationCount = 6
)

// lcg is a 32-bit linear congruential generator (Numerical Recipes
// constants). It only has to be deterministic per seed.
type lcg struct {
	state uint32
}

func (g *lcg) next() uint32 {
	g.state = g.state*1664525 + 1013904223
	return g.state
}

// intn returns a value in [0, n).
func (g *lcg) intn(n int) int {
	return int((uint64(g.next()) * uint64(n)) >> 32)
}

func (g *lcg) uint64() uint64 {
	hi := uint64(g.next())
	return hi<<32 | uint64(g.next())
}

// permutation returns a Fisher-Yates shuffle of 0..n-1.
func (g *lcg) permutation(n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = uint16(i)
	}
	for i := n - 1; i > 0; i-- {
		j := g.intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Derive builds a structurally valid Spec with the reference geometry from
// a 32-bit seed. Table contents are seed-dependent; the shapes never are.
// It stands in for the real cipher definition, which is supplied as a spec
// file when table contents matter.
func Derive(seed uint32) *Spec {
	g := &lcg{state: seed}
	spec := &Spec{
		DigestBits: RefDigestBits,
		WordBits:   RefWordBits,
		StateWords: RefStateWords,
		Rounds:     RefRounds,
		Shuffle:    RefShuffle,
	}

	spec.SmallSboxes = make([][]uint16, RefSmallTables)
	for i := range spec.SmallSboxes {
		spec.SmallSboxes[i] = g.permutation(1 << RefSmallWidth)
	}
	spec.LargeSboxes = make([][]uint16, RefStateWords)
	for i := range spec.LargeSboxes {
		spec.LargeSboxes[i] = g.permutation(1 << RefLargeWidth)
	}

	pairs := RefStateWords / 2
	spec.Permutations = make([]Pbox, PermutationCount)
	for p := range spec.Permutations {
		masks := make([][]uint64, RefSubrounds)
		for r := range masks {
			masks[r] = make([]uint64, pairs)
			for k := range masks[r] {
				masks[r][k] = g.uint64()
			}
		}
		rotations := make([][]int, RefSubrounds-1)
		for r := range rotations {
			rotations[r] = make([]int, pairs)
			for k := range rotations[r] {
				rotations[r][k] = g.intn(RefWordBits)
			}
		}
		spec.Permutations[p] = Pbox{Masks: masks, Rotations: rotations}
	}

	// Distinct non-zero amounts so no two rotations cancel in the XOR.
	seen := make(map[int]bool, RefRotationCount)
	for len(spec.Rotations) < RefRotationCount {
		r := 1 + g.intn(RefWordBits-1)
		if seen[r] {
			continue
		}
		seen[r] = true
		spec.Rotations = append(spec.Rotations, r)
	}

	spec.RoundKeys = make([]uint64, RefRounds)
	for i := range spec.RoundKeys {
		spec.RoundKeys[i] = uint64(g.next()) & (1<<RefStateWords - 1)
	}
	return spec
}
