package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/odogen/internal/artifact"
	"github.com/robert-at-pretension-io/odogen/internal/diagram"
	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

type scheduleOptions struct {
	rounds  int
	diagram string
	json    bool
}

func newScheduleCmd(a *app) *cobra.Command {
	var opts scheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule <throughput>",
		Short: "Print the pipeline schedule for a throughput",
		Long: `schedule prints the folding parameters for one throughput without
generating any Verilog: unrolling, extra delay, periods, latency and the
logical rounds each physical round unit serves.

The round count comes from --rounds, else from --spec, else the reference
cipher.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 1 {
				return usagef("schedule takes exactly one throughput")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSchedule(cmd, args[0], opts)
		},
	}
	cmd.Flags().IntVar(&opts.rounds, "rounds", 0, "round count (default from the cipher spec)")
	cmd.Flags().StringVar(&opts.diagram, "diagram", "", "also render the pipeline diagram to this file")
	cmd.Flags().String("diagram-format", "svg", "diagram format: svg, png, dot")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print the schedule as JSON")
	bind(a.v, cmd.Flags(), map[string]string{"diagram_format": "diagram-format"})
	return cmd
}

func (a *app) runSchedule(cmd *cobra.Command, arg string, opts scheduleOptions) error {
	throughput, err := parseThroughput(arg)
	if err != nil {
		return err
	}
	rounds := opts.rounds
	if rounds == 0 {
		spec, err := a.generator(cmd.OutOrStdout()).LoadSpec(0)
		if err != nil {
			return err
		}
		rounds = spec.Rounds
	}

	p, err := schedule.Compute(rounds, throughput)
	if err != nil {
		return err
	}
	a.log.Debug().Int("rounds", rounds).Int("throughput", throughput).Msg("schedule computed")

	if opts.diagram != "" {
		var buf bytes.Buffer
		if err := diagram.Render(cmd.Context(), diagram.DOT(p, a.cfg.Prefix), a.cfg.DiagramFormat, &buf); err != nil {
			return err
		}
		if err := artifact.WriteAtomic(opts.diagram, buf.Bytes()); err != nil {
			return err
		}
		a.log.Info().Str("path", opts.diagram).Str("format", a.cfg.DiagramFormat).Msg("diagram written")
	}

	if opts.json {
		return writeScheduleJSON(cmd.OutOrStdout(), p)
	}
	return writeSchedule(cmd.OutOrStdout(), p)
}

type scheduleReport struct {
	schedule.Params
	Coverage [][]int `json:"coverage"`
}

func writeScheduleJSON(w io.Writer, p schedule.Params) error {
	data, err := json.MarshalIndent(scheduleReport{Params: p, Coverage: p.Coverage()}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

func writeSchedule(w io.Writer, p schedule.Params) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "rounds       %d\n", p.Rounds)
	fmt.Fprintf(&b, "throughput   %d\n", p.Throughput)
	fmt.Fprintf(&b, "unrolling    %d\n", p.Unrolling)
	fmt.Fprintf(&b, "extra delay  %d\n", p.ExtraDelay)
	fmt.Fprintf(&b, "periods      %d\n", p.Periods)
	fmt.Fprintf(&b, "period bits  %d\n", p.PeriodBits)
	fmt.Fprintf(&b, "cycle        %d\n", p.CycleLength())
	fmt.Fprintf(&b, "latency      %d\n", p.Latency)
	fmt.Fprintf(&b, "output unit  %d\n", p.OutputUnit())
	for unit, rounds := range p.Coverage() {
		fmt.Fprintf(&b, "unit %d: %v\n", unit, rounds)
	}
	_, err := w.Write(b.Bytes())
	return err
}
