package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newBatchCmd(a *app) *cobra.Command {
	var manifests bool
	cmd := &cobra.Command{
		Use:   "batch <seed> <t1,t2,...> [prefix]",
		Short: "Generate one artifact per throughput concurrently",
		Long: `batch derives the cipher once and generates an artifact for every listed
throughput in parallel. Each artifact is written atomically to
<out-dir>/<prefix>odo_t<T>.v; every throughput is checked before the
first file is written.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return usagef("batch takes a seed, a throughput list and an optional prefix")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := parseSeed(args[0])
			if err != nil {
				return err
			}
			throughputs, err := parseThroughputList(args[1])
			if err != nil {
				return err
			}
			prefix := a.cfg.Prefix
			if len(args) == 3 {
				prefix = args[2]
			}

			results, err := a.generator(cmd.OutOrStdout()).RunBatch(cmd.Context(), seed, throughputs, prefix, a.cfg.OutDir, manifests)
			if err != nil {
				return err
			}
			for _, res := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", res.Digest.SHA256, res.Digest.Path)
			}
			return nil
		},
	}
	cmd.Flags().String("out-dir", ".", "directory receiving the artifacts")
	cmd.Flags().Int("workers", 0, "concurrent generations (0 = one per throughput)")
	cmd.Flags().BoolVar(&manifests, "manifests", false, "write a manifest next to every artifact")
	bind(a.v, cmd.Flags(), map[string]string{
		"out_dir": "out-dir",
		"workers": "workers",
	})
	return cmd
}

// parseThroughputList splits a comma-separated list of throughputs.
func parseThroughputList(s string) ([]int, error) {
	var out []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		t, err := parseThroughput(field)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, usagef("no throughputs in %q", s)
	}
	return out, nil
}
