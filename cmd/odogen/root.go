package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/robert-at-pretension-io/odogen/internal/artifact"
	"github.com/robert-at-pretension-io/odogen/internal/config"
	"github.com/robert-at-pretension-io/odogen/internal/generator"
	"github.com/robert-at-pretension-io/odogen/internal/logging"
)

// usageError marks argument problems; they are reported with the usage text.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// isUsageError reports whether err came from argument validation.
func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue)
}

// app carries state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	start   time.Time

	cfg    *config.Config
	log    zerolog.Logger
	timing *artifact.Recorder
}

// newRootCmd builds the command tree. The returned func releases the
// timing log and must run after Execute, whatever its outcome.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, func()) {
	a := &app{v: viper.New(), start: time.Now(), log: zerolog.Nop()}

	root := &cobra.Command{
		Use:   "odogen <seed> <throughput> [prefix]",
		Short: "Generate pipelined Verilog for the Odo permutation",
		Long: `odogen derives the cipher from a 32-bit seed (or reads it from --spec),
folds its rounds onto ceil(rounds/throughput) physical round units and
writes the complete Verilog module set.

The seed and throughput accept decimal, 0x hex and leading-0 octal.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return usagef("incorrect number of arguments")
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(stderr)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGenerate(cmd, args)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default ./.odogen.yaml or $HOME/.config/odogen/config.yaml)")
	flags.String("spec", "", "JSON cipher spec file to use instead of seed derivation")
	flags.StringP("output", "o", "-", "artifact path (- for stdout)")
	flags.String("manifest", "", "write a JSON manifest of the generated modules to this path")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.String("log-format", "auto", "log format: auto, console, json")
	flags.Bool("timing", false, "append per-stage timings as JSON lines")
	flags.String("timing-path", "odogen_timing.jsonl", "timing JSONL path")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")

	bind(a.v, flags, map[string]string{
		"spec_file":   "spec",
		"output":      "output",
		"manifest":    "manifest",
		"log_level":   "log-level",
		"log_format":  "log-format",
		"timing":      "timing",
		"timing_path": "timing-path",
	})

	root.AddCommand(
		newScheduleCmd(a),
		newBatchCmd(a),
		newPermutationCmd(a),
		newInitCmd(a),
	)
	return root, func() { a.timing.Close() }
}

// setup resolves configuration, logging and timing for the command.
func (a *app) setup(stderr io.Writer) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}
	log, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, Out: stderr})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	if cfg.Source != "" {
		a.log.Debug().Str("path", cfg.Source).Msg("using config file")
	}

	if path := artifact.ResolveTimingPath(cfg.Timing, cfg.TimingPath); path != "" {
		a.timing = artifact.NewRecorder(a.start, path)
		if err := a.timing.Err(); err != nil {
			a.log.Warn().Err(err).Str("path", path).Msg("timing disabled")
		}
	}
	return nil
}

func (a *app) generator(stdout io.Writer) *generator.Generator {
	g := generator.New(a.cfg, a.log)
	g.Stdout = stdout
	g.Timing = a.timing
	return g
}

func (a *app) runGenerate(cmd *cobra.Command, args []string) error {
	seed, err := parseSeed(args[0])
	if err != nil {
		return err
	}
	throughput, err := parseThroughput(args[1])
	if err != nil {
		return err
	}
	prefix := a.cfg.Prefix
	if len(args) == 3 {
		prefix = args[2]
	}

	req := generator.Request{
		Seed:       seed,
		Throughput: throughput,
		Prefix:     prefix,
		Output:     a.cfg.Output,
		Manifest:   a.cfg.Manifest,
	}
	_, err = a.generator(cmd.OutOrStdout()).Run(cmd.Context(), req)
	return err
}

// parseSeed accepts any 32-bit value in decimal, hex or octal notation.
func parseSeed(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, usagef("invalid seed %q", s)
	}
	return uint32(v), nil
}

// parseThroughput accepts a positive 32-bit value.
func parseThroughput(s string) (int, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, usagef("invalid throughput %q", s)
	}
	if v == 0 {
		return 0, usagef("throughput cannot be 0")
	}
	return int(v), nil
}
