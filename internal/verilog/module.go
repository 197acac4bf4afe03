// Package verilog builds the pipelined module set for a cipher spec and
// renders it as structural Verilog text.
package verilog

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/robert-at-pretension-io/odogen/internal/schedule"
)

// Direction of a module port.
type Direction string

const (
	Input  Direction = "input"
	Output Direction = "output"
)

// Port is one entry of a module's port list.
type Port struct {
	Name  string    `json:"name"`
	Dir   Direction `json:"dir"`
	Width int       `json:"width"`
	Reg   bool      `json:"reg,omitempty"`
}

func (p Port) decl() string {
	var b strings.Builder
	b.WriteString(string(p.Dir))
	if p.Reg {
		b.WriteString(" reg")
	}
	if p.Width > 1 {
		fmt.Fprintf(&b, " [%d:0]", p.Width-1)
	}
	b.WriteString(" ")
	b.WriteString(p.Name)
	b.WriteString(";")
	return b.String()
}

// Module is one named, self-contained Verilog module. Body lines are
// relative to the module's own indentation.
type Module struct {
	Name   string
	Locals []string
	Ports  []Port
	Body   []string
}

func (m *Module) render(b *bytes.Buffer) {
	names := make([]string, len(m.Ports))
	for i, p := range m.Ports {
		names[i] = p.Name
	}
	fmt.Fprintf(b, "module %s(%s);\n", m.Name, strings.Join(names, ", "))
	for _, l := range m.Locals {
		b.WriteString(indent)
		b.WriteString(l)
		b.WriteByte('\n')
	}
	for _, p := range m.Ports {
		b.WriteString(indent)
		b.WriteString(p.decl())
		b.WriteByte('\n')
	}
	for _, l := range m.Body {
		b.WriteString(indent)
		b.WriteString(l)
		b.WriteByte('\n')
	}
	b.WriteString("endmodule\n")
}

const indent = "    "

// ModuleSet is the ordered output of one generation. It is built once per
// (spec, throughput, prefix) and never modified afterwards.
type ModuleSet struct {
	Prefix   string
	Schedule schedule.Params
	Modules  []Module
}

// Bytes renders the whole set. Modules are separated by one blank line.
func (s *ModuleSet) Bytes() []byte {
	var b bytes.Buffer
	for i := range s.Modules {
		if i > 0 {
			b.WriteByte('\n')
		}
		s.Modules[i].render(&b)
	}
	return b.Bytes()
}

// WriteTo renders the set into memory first and hands it to w in a single
// Write, so a failure while building never reaches w.
func (s *ModuleSet) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(s.Bytes())
	return int64(n), err
}

// Names lists module names in emission order.
func (s *ModuleSet) Names() []string {
	names := make([]string, len(s.Modules))
	for i, m := range s.Modules {
		names[i] = m.Name
	}
	return names
}

// Lookup returns the module with the given full name.
func (s *ModuleSet) Lookup(name string) (*Module, bool) {
	for i := range s.Modules {
		if s.Modules[i].Name == name {
			return &s.Modules[i], true
		}
	}
	return nil, false
}

// Interface describes a module's name and ports for manifests.
type Interface struct {
	Name  string `json:"name"`
	Ports []Port `json:"ports"`
}

// Interfaces returns the name and port list of every module.
func (s *ModuleSet) Interfaces() []Interface {
	out := make([]Interface, len(s.Modules))
	for i, m := range s.Modules {
		ports := make([]Port, len(m.Ports))
		copy(ports, m.Ports)
		out[i] = Interface{Name: m.Name, Ports: ports}
	}
	return out
}

// body accumulates module body lines.
type body []string

func (b *body) add(format string, args ...any) {
	*b = append(*b, fmt.Sprintf(format, args...))
}

// nibbles is the number of hex digits needed for a width-bit literal.
func nibbles(width int) int {
	return 1 + (width-1)/4
}

// hexLiteral renders a sized, zero-padded hex literal such as 10'h03f.
func hexLiteral(width int, v uint64) string {
	return fmt.Sprintf("%d'h%0*x", width, nibbles(width), v)
}

// span renders the bit range [hi:lo] of a signal.
func span(name string, hi, lo int) string {
	return fmt.Sprintf("%s[%d:%d]", name, hi, lo)
}

func input(name string, width int) Port  { return Port{Name: name, Dir: Input, Width: width} }
func output(name string, width int) Port { return Port{Name: name, Dir: Output, Width: width} }
func outputReg(name string, width int) Port {
	return Port{Name: name, Dir: Output, Width: width, Reg: true}
}

var clock = input("clk", 1)
