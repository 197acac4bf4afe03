package verilog

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/odogen/internal/bitperm"
	"github.com/robert-at-pretension-io/odogen/internal/cipher"
)

// geometry caches the widths every builder needs.
type geometry struct {
	digest     int
	word       int
	words      int
	smallWidth int
	largeWidth int
	perWord    int
}

func geometryOf(spec *cipher.Spec) (geometry, error) {
	small, err := spec.SmallWidth()
	if err != nil {
		return geometry{}, err
	}
	large, err := spec.LargeWidth()
	if err != nil {
		return geometry{}, err
	}
	return geometry{
		digest:     spec.DigestBits,
		word:       spec.WordBits,
		words:      spec.StateWords,
		smallWidth: small,
		largeWidth: large,
		perWord:    spec.SmallPerWord(),
	}, nil
}

func (g geometry) wordSpan(name string, i int) string {
	return span(name, g.word*(i+1)-1, g.word*i)
}

// preMix folds the XOR of all words, and its upper half, back into each word.
func preMix(prefix string, g geometry) Module {
	var b body
	b.add("wire [%d:0] total;", g.word-1)
	var total strings.Builder
	total.WriteString("assign total = 0")
	for i := 0; i < g.words; i++ {
		total.WriteString(" ^ ")
		total.WriteString(g.wordSpan("in", i))
	}
	total.WriteString(";")
	b = append(b, total.String())
	for i := 0; i < g.words; i++ {
		b.add("assign %s = %s ^ total ^ (total >> %d);", g.wordSpan("out", i), g.wordSpan("in", i), g.word/2)
	}
	return Module{
		Name:  prefix + "pre_mix",
		Ports: []Port{input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}

// sboxTable emits one substitution table. Dual-port tables expose two
// independently addressed read ports over the same memory.
func sboxTable(name string, table []uint16, dual bool) (Module, error) {
	width, err := cipher.AddressWidth(len(table))
	if err != nil {
		return Module{}, fmt.Errorf("%s: %w", name, err)
	}
	var ports []Port
	var b body
	b.add("reg [%d:0] mem[0:%d];", width-1, len(table)-1)
	b.add("always @(posedge clk) begin")
	if dual {
		ports = []Port{clock, input("a_in", width), input("b_in", width), outputReg("a_out", width), outputReg("b_out", width)}
		b.add("    a_out <= mem[a_in];")
		b.add("    b_out <= mem[b_in];")
	} else {
		ports = []Port{clock, input("in", width), outputReg("out", width)}
		b.add("    out <= mem[in];")
	}
	b.add("end")
	b.add("initial begin")
	for j, v := range table {
		b.add("    mem[%d] = %s;", j, hexLiteral(width, uint64(v)))
	}
	b.add("end")
	return Module{Name: name, Ports: ports, Body: b}, nil
}

// applySboxes tiles the state with table instances. Each word holds
// perWord small groups, each followed by a large group; consecutive large
// groups share one dual-port instance of that word's large table.
func applySboxes(prefix string, g geometry) Module {
	var b body
	pos, small, inst := 0, 0, 0
	for word := 0; word < g.words; word++ {
		var pairLo, pairHi int
		for j := 0; j < g.perWord; j++ {
			next := pos + g.smallWidth
			b.add("%ssbox_small%d sbox%dinst(clk, %s, %s);", prefix, small, inst,
				span("in", next-1, pos), span("out", next-1, pos))
			inst++
			small++
			pos = next
			next = pos + g.largeWidth
			if j&1 == 1 {
				b.add("%ssbox_large%d sbox%dinst(clk, %s, %s, %s, %s);", prefix, word, inst,
					span("in", pairHi, pairLo), span("in", next-1, pos),
					span("out", pairHi, pairLo), span("out", next-1, pos))
				inst++
			} else {
				pairLo, pairHi = pos, next-1
			}
			pos = next
		}
	}
	return Module{
		Name:  prefix + "apply_sboxes",
		Ports: []Port{clock, input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}

// applyPbox rewires bits according to a resolved map, one assignment per
// output bit in output order.
func applyPbox(prefix string, index int, m bitperm.Map, g geometry) Module {
	b := make(body, 0, len(m.Source))
	for o, i := range m.Source {
		b.add("assign out[%d] = in[%d];", o, i)
	}
	return Module{
		Name:  fmt.Sprintf("%sapply_pbox%d", prefix, index),
		Ports: []Port{input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}

// rotationHelper XORs the left rotations of one word by every amount.
func rotationHelper(prefix string, rotations []int, g geometry) Module {
	terms := make([]string, len(rotations))
	for i, r := range rotations {
		terms[i] = fmt.Sprintf("{%s, %s}", span("in", g.word-1-r, 0), span("in", g.word-1, g.word-r))
	}
	return Module{
		Name:  prefix + "rotation_helper",
		Ports: []Port{input("in", g.word), output("out", g.word)},
		Body:  []string{"assign out = " + strings.Join(terms, " ^ ") + ";"},
	}
}

// applyRotations runs the helper on every word and mixes in the state
// rotated down by one word.
func applyRotations(prefix string, g geometry) Module {
	var b body
	b.add("wire [%d:0] rot;", g.digest-1)
	for i := 0; i < g.words; i++ {
		b.add("%srotation_helper rot%dinst(%s, %s);", prefix, i, g.wordSpan("in", i), g.wordSpan("rot", i))
	}
	b.add("assign out = rot ^ {%s, %s};", span("in", g.word-1, 0), span("in", g.digest-1, g.word))
	return Module{
		Name:  prefix + "apply_rotations",
		Ports: []Port{input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}

// applyRoundKey XORs key bit i into the low bit of word i.
func applyRoundKey(prefix string, g geometry) Module {
	var b body
	for i := 0; i < g.words; i++ {
		lo := g.word * i
		hi := g.word*(i+1) - 1
		b.add("assign out[%d] = in[%d] ^ key[%d];", lo, lo, i)
		b.add("assign %s = %s;", span("out", hi, lo+1), span("in", hi, lo+1))
	}
	return Module{
		Name:  prefix + "apply_round_key",
		Ports: []Port{input("key", g.words), input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}

// fullRound chains pbox0, the substitution layer, pbox1, rotations and key
// injection.
func fullRound(prefix string, g geometry) Module {
	var b body
	b.add("wire [%d:0] mid[0:3];", g.digest-1)
	b.add("%sapply_pbox0 pbox0inst(in, mid[0]);", prefix)
	b.add("%sapply_sboxes sboxes(clk, mid[0], mid[1]);", prefix)
	b.add("%sapply_pbox1 pbox1inst(mid[1], mid[2]);", prefix)
	b.add("%sapply_rotations rotations(mid[2], mid[3]);", prefix)
	b.add("%sapply_round_key keys(roundkey, mid[3], out);", prefix)
	return Module{
		Name:  prefix + "full_round",
		Ports: []Port{clock, input("roundkey", g.words), input("in", g.digest), output("out", g.digest)},
		Body:  b,
	}
}
