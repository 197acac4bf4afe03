package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/odogen/internal/bitperm"
	"github.com/robert-at-pretension-io/odogen/internal/cipher"
)

type permutationReport struct {
	Permutation int   `json:"permutation"`
	Bits        int   `json:"bits"`
	Inverse     bool  `json:"inverse,omitempty"`
	Source      []int `json:"source"`
}

func newPermutationCmd(a *app) *cobra.Command {
	var inverse bool
	cmd := &cobra.Command{
		Use:   "permutation <seed> <index>",
		Short: "Print a resolved bit permutation as JSON",
		Long: fmt.Sprintf(`permutation resolves one of the cipher's %d permutation descriptors into
its bit map and prints it: output bit o is fed by input bit source[o].
With --inverse the map from input bit to output bit is printed instead.`, cipher.PermutationCount),
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 2 {
				return usagef("permutation takes a seed and an index")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := parseSeed(args[0])
			if err != nil {
				return err
			}
			index, err := strconv.Atoi(args[1])
			if err != nil || index < 0 || index >= cipher.PermutationCount {
				return usagef("permutation index must be 0..%d, got %q", cipher.PermutationCount-1, args[1])
			}

			spec, err := a.generator(cmd.OutOrStdout()).LoadSpec(seed)
			if err != nil {
				return err
			}
			m, err := bitperm.Resolve(spec.Permutations[index], bitperm.GeometryOf(spec))
			if err != nil {
				return err
			}
			if inverse {
				m = m.Inverse()
			}
			a.log.Debug().Int("permutation", index).Int("bits", len(m.Source)).Msg("permutation resolved")

			data, err := json.Marshal(permutationReport{
				Permutation: index,
				Bits:        len(m.Source),
				Inverse:     inverse,
				Source:      m.Source,
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return err
		},
	}
	cmd.Flags().BoolVar(&inverse, "inverse", false, "print the inverse map")
	return cmd
}
