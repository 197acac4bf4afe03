// Command odogen emits synthesizable Verilog for a pipelined, round-folded
// Odo permutation.
//
// Usage:
//
//	odogen <seed> <throughput> [prefix]
//	odogen schedule <throughput> [--rounds N] [--diagram file]
//	odogen batch <seed> <t1,t2,...> [--out-dir dir]
//	odogen permutation <seed> <0|1>
//	odogen init
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run executes one invocation and returns the process exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, done := newRootCmd(stdout, stderr)
	defer done()
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)

	cmd, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	if isUsageError(err) {
		fmt.Fprint(stderr, cmd.UsageString())
	}
	return 1
}

// bind ties config keys to flags so an explicitly set flag wins over the
// environment and the config file.
func bind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("binding flag --%s: %v", name, err))
		}
	}
}
