package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/odogen/internal/config"
)

const defaultConfigPath = ".odogen.yaml"

func newInitCmd(a *app) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a default configuration file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath
			if len(args) == 1 {
				path = args[0]
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", path)
				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.TrimSpace(response)
				if response != "y" && response != "Y" {
					fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			if err := config.DefaultConfig().Save(path); err != nil {
				return err
			}
			a.log.Debug().Str("path", path).Msg("config written")

			fmt.Fprintf(out, "Created %s\n", path)
			fmt.Fprintln(out, "\nEdit this file to configure:")
			fmt.Fprintln(out, "  - Module prefix and output paths")
			fmt.Fprintln(out, "  - An optional JSON cipher spec")
			fmt.Fprintln(out, "  - Batch workers, logging and timing")
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite without asking")
	return cmd
}
