// Package diagram draws the folded pipeline of a schedule: the ring of
// round units and delay slots, which logical rounds each unit serves, and
// where the result is tapped.
package diagram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

// maxListed caps the rounds printed in one unit label.
const maxListed = 8

// DOT renders the schedule as Graphviz source.
func DOT(p schedule.Params, prefix string) string {
	var b strings.Builder
	b.WriteString("digraph pipeline {\n")
	b.WriteString("  rankdir=LR;\n")
	fmt.Fprintf(&b, "  label=\"%sencrypt: throughput %d, %d units, %d periods, extra delay %d, latency %d\";\n",
		prefix, p.Throughput, p.Unrolling, p.Periods, p.ExtraDelay, p.Latency)
	b.WriteString("  node [shape=box, fontname=\"Helvetica\"];\n")
	b.WriteString("  in [shape=circle];\n")
	b.WriteString("  out [shape=doublecircle];\n")
	fmt.Fprintf(&b, "  premix [label=\"%spre_mix\"];\n", prefix)
	b.WriteString("  in -> premix;\n")

	for i := 0; i < p.Unrolling; i++ {
		fmt.Fprintf(&b, "  unit%d [label=\"round%d\\nrounds %s\"];\n", i, i, roundList(p.UnitRounds(i)))
	}
	for i := 0; i < p.ExtraDelay; i++ {
		fmt.Fprintf(&b, "  delay%d [label=\"delay\", style=dashed];\n", i)
	}

	slots := slotNames(p)
	b.WriteString("  premix -> unit0 [label=\"read\"];\n")
	for i := 1; i < len(slots); i++ {
		fmt.Fprintf(&b, "  %s -> %s;\n", slots[i-1], slots[i])
	}
	if p.UsesLookup() {
		fmt.Fprintf(&b, "  %s -> unit0 [label=\"period+1\", style=dashed, constraint=false];\n", slots[len(slots)-1])
	}
	fmt.Fprintf(&b, "  unit%d -> out [label=\"write after %d\"];\n", p.OutputUnit(), p.Latency)
	b.WriteString("}\n")
	return b.String()
}

func slotNames(p schedule.Params) []string {
	names := make([]string, 0, p.StateSlots())
	for i := 0; i < p.Unrolling; i++ {
		names = append(names, fmt.Sprintf("unit%d", i))
	}
	for i := 0; i < p.ExtraDelay; i++ {
		names = append(names, fmt.Sprintf("delay%d", i))
	}
	return names
}

func roundList(rounds []int) string {
	parts := make([]string, 0, maxListed+1)
	for i, r := range rounds {
		if i == maxListed {
			parts = append(parts, "...")
			break
		}
		parts = append(parts, fmt.Sprint(r))
	}
	return strings.Join(parts, ",")
}

// Render writes the diagram in format: "dot" writes the source, "svg" and
// "png" lay it out with Graphviz. The output is buffered and written once.
func Render(ctx context.Context, dot string, format string, w io.Writer) error {
	var buf bytes.Buffer
	switch format {
	case "dot":
		buf.WriteString(dot)
	case "svg", "png":
		graph, err := graphviz.ParseBytes([]byte(dot))
		if err != nil {
			return fmt.Errorf("parsing diagram: %w", err)
		}
		defer graph.Close()

		g, err := graphviz.New(ctx)
		if err != nil {
			return fmt.Errorf("starting graphviz: %w", err)
		}
		defer g.Close()

		f := graphviz.SVG
		if format == "png" {
			f = graphviz.PNG
		}
		if err := g.Render(ctx, graph, f, &buf); err != nil {
			return fmt.Errorf("rendering diagram: %w", err)
		}
	default:
		return fmt.Errorf("diagram: unknown format %q", format)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing diagram: %w", err)
	}
	return nil
}
