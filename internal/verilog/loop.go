package verilog

import (
	"fmt"

	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

// roundKeyLookup selects unit i's key for the current period. Unit i serves
// rounds i, i+unrolling, ..., so case label j maps to round i+j*unrolling.
func roundKeyLookup(prefix string, unit int, keys []uint64, p schedule.Params, g geometry) Module {
	var b body
	b.add("always @(posedge clk) begin")
	b.add("case (period)")
	for j, r := range p.UnitRounds(unit) {
		b.add("    %s: key <= %s;", hexLiteral(p.PeriodBits, uint64(j)), hexLiteral(g.words, keys[r]))
	}
	b.add("endcase")
	b.add("end")
	return Module{
		Name:  fmt.Sprintf("%sget_round_key%d", prefix, unit),
		Ports: []Port{clock, input("period", p.PeriodBits), outputReg("key", g.words)},
		Body:  b,
	}
}

// encryptLoop instantiates the physical round units and the delay chains
// that fold the logical rounds onto them.
//
// state/next form a ring of unrolling+extraDelay slots; the extra slots are
// plain delays. When keys are looked up, a period index travels a parallel
// chain of 2*unrolling+extraDelay registers (each unit adds one cycle of
// table latency) and is bumped once per lap. progress is a latency-long
// shift of the read strobe that raises write when the result is ready.
func encryptLoop(prefix string, keys []uint64, p schedule.Params, g geometry) Module {
	slots := p.StateSlots()
	cycle := p.CycleLength()

	var b body
	b.add("reg [%d:0] state[%d:0];", g.digest-1, slots-1)
	b.add("wire [%d:0] next[%d:0];", g.digest-1, slots-1)
	for i := 1; i < slots; i++ {
		b.add("always @(posedge clk) state[%d] <= next[%d];", i, i-1)
	}
	for i := 0; i < p.ExtraDelay; i++ {
		b.add("assign next[%d] = state[%d];", p.Unrolling+i, p.Unrolling+i)
	}

	if p.UsesLookup() {
		b.add("wire [%d:0] roundkey[%d:0];", g.words-1, p.Unrolling-1)
		b.add("reg [%d:0] period[%d:0];", p.PeriodBits-1, cycle-1)
		for i := 1; i < cycle; i++ {
			b.add("always @(posedge clk) period[%d] <= period[%d];", i, i-1)
		}
		for i := 0; i < p.Unrolling; i++ {
			b.add("%sget_round_key%d get_key%d(clk, period[%d], roundkey[%d]);", prefix, i, i, 2*i, i)
			b.add("%sfull_round round%d(clk, roundkey[%d], state[%d], next[%d]);", prefix, i, i, i, i)
		}
		b.add("always @(posedge clk) begin")
		b.add("    if (read)")
		b.add("    begin")
		b.add("        period[0] <= 0;")
		b.add("        state[0] <= in;")
		b.add("    end")
		b.add("    else")
		b.add("    begin")
		b.add("        period[0] <= period[%d]+1;", cycle-1)
		b.add("        state[0] <= next[%d];", slots-1)
		b.add("    end")
		b.add("    out <= next[%d];", p.OutputUnit())
		b.add("end")
	} else {
		for i := 0; i < p.Unrolling; i++ {
			b.add("%sfull_round round%d(clk, %s, state[%d], next[%d]);", prefix, i, hexLiteral(g.words, keys[i]), i, i)
		}
		b.add("always @(posedge clk) begin")
		b.add("    state[0] <= in;")
		b.add("    out <= next[%d];", p.Rounds-1)
		b.add("end")
	}

	b.add("reg [%d:0] progress;", p.Latency-1)
	b.add("initial progress = %d'h0;", p.Latency)
	b.add("always @(posedge clk) progress[0] <= read;")
	for i := 1; i < p.Latency; i++ {
		b.add("always @(posedge clk) progress[%d] <= progress[%d];", i, i-1)
	}
	b.add("assign write = progress[%d];", p.Latency-1)

	return Module{
		Name:  prefix + "encrypt_loop",
		Ports: loopPorts(g, true),
		Body:  b,
	}
}

// encryptTop registers the input twice around pre-mix so the loop sees a
// clean two-stage pipeline.
func encryptTop(prefix string, p schedule.Params, g geometry) Module {
	var b body
	b.add("reg [1:0] progress;")
	b.add("initial progress = 2'h0;")
	b.add("reg [%d:0] state[1:0];", g.digest-1)
	b.add("wire [%d:0] next;", g.digest-1)
	b.add("%spre_mix premixer(state[0], next);", prefix)
	b.add("%sencrypt_loop crypter(clk, state[1], progress[1], out, write);", prefix)
	b.add("always @(posedge clk) begin")
	b.add("    progress[0] <= read;")
	b.add("    progress[1] <= progress[0];")
	b.add("    state[0] <= in;")
	b.add("    state[1] <= next;")
	b.add("end")
	return Module{
		Name:   prefix + "encrypt",
		Locals: []string{fmt.Sprintf("localparam THROUGHPUT = %d;", p.Throughput)},
		Ports:  loopPorts(g, false),
		Body:   b,
	}
}

func loopPorts(g geometry, regOut bool) []Port {
	data := output("out", g.digest)
	data.Reg = regOut
	return []Port{clock, input("in", g.digest), input("read", 1), data, output("write", 1)}
}
