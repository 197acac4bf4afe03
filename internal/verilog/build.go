package verilog

import (
	"fmt"
	"io"

	"github.com/robert-at-pretension-io/odogen/internal/bitperm"
	"github.com/robert-at-pretension-io/odogen/internal/cipher"
	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

// Build computes the schedule and bit maps for spec and assembles the
// module set. The spec is validated first; nothing is built for a spec
// that fails structural checks.
func Build(spec *cipher.Spec, throughput int, prefix string) (*ModuleSet, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	params, err := schedule.Compute(spec.Rounds, throughput)
	if err != nil {
		return nil, err
	}
	maps, err := bitperm.ResolveSpec(spec)
	if err != nil {
		return nil, err
	}
	return Assemble(spec, params, maps, prefix)
}

// Assemble builds the module set from precomputed inputs. Modules are
// ordered so every instantiated module is defined before its user.
func Assemble(spec *cipher.Spec, params schedule.Params, maps []bitperm.Map, prefix string) (*ModuleSet, error) {
	if len(maps) != cipher.PermutationCount {
		return nil, fmt.Errorf("verilog: %d bit maps, want %d", len(maps), cipher.PermutationCount)
	}
	for i, m := range maps {
		if len(m.Source) != spec.DigestBits {
			return nil, fmt.Errorf("verilog: bit map %d covers %d bits of %d", i, len(m.Source), spec.DigestBits)
		}
	}
	if params.Rounds != spec.Rounds {
		return nil, fmt.Errorf("verilog: schedule for %d rounds, spec has %d", params.Rounds, spec.Rounds)
	}
	g, err := geometryOf(spec)
	if err != nil {
		return nil, err
	}

	set := &ModuleSet{Prefix: prefix, Schedule: params}
	set.Modules = append(set.Modules, preMix(prefix, g))
	for i, table := range spec.SmallSboxes {
		m, err := sboxTable(fmt.Sprintf("%ssbox_small%d", prefix, i), table, false)
		if err != nil {
			return nil, err
		}
		set.Modules = append(set.Modules, m)
	}
	for i, table := range spec.LargeSboxes {
		m, err := sboxTable(fmt.Sprintf("%ssbox_large%d", prefix, i), table, true)
		if err != nil {
			return nil, err
		}
		set.Modules = append(set.Modules, m)
	}
	set.Modules = append(set.Modules, applySboxes(prefix, g))
	for i, m := range maps {
		set.Modules = append(set.Modules, applyPbox(prefix, i, m, g))
	}
	set.Modules = append(set.Modules,
		rotationHelper(prefix, spec.Rotations, g),
		applyRotations(prefix, g),
		applyRoundKey(prefix, g),
		fullRound(prefix, g),
	)
	if params.UsesLookup() {
		for i := 0; i < params.Unrolling; i++ {
			set.Modules = append(set.Modules, roundKeyLookup(prefix, i, spec.RoundKeys, params, g))
		}
	}
	set.Modules = append(set.Modules,
		encryptLoop(prefix, spec.RoundKeys, params, g),
		encryptTop(prefix, params, g),
	)
	return set, nil
}

// Emit builds the module set and writes it to w in one piece. On error
// nothing is written.
func Emit(spec *cipher.Spec, throughput int, prefix string, w io.Writer) error {
	set, err := Build(spec, throughput, prefix)
	if err != nil {
		return err
	}
	if _, err := set.WriteTo(w); err != nil {
		return fmt.Errorf("writing modules: %w", err)
	}
	return nil
}
