// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asmbox

import (
	"fmt"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Instruction is a single assembled source line. Its index in the
// instruction list of a Program is the address the IP register refers to.
// Instructions are immutable once assembled.
type Instruction struct {
	// SourceLine is the 1-based line number of the instruction in the source.
	SourceLine int `json:"line"`
	// Text is the source text of the instruction with comments removed.
	Text string `json:"text"`
	// Opcode is the upper-cased mnemonic of the instruction. It is not
	// validated during assembly.
	Opcode string `json:"opcode"`
	// Operands lists the trimmed, comma separated operands.
	Operands []string `json:"operands,omitempty"`
	// Err is set if the line could not be parsed into an instruction. Such
	// instructions fail when executed.
	Err string `json:"error,omitempty"`
}

// IsValid reports whether the instruction was parsed successfully.
func (i Instruction) IsValid() bool {
	return i.Err == ""
}

func (i Instruction) String() string {
	if len(i.Operands) == 0 {
		return i.Opcode
	}
	return i.Opcode + " " + strings.Join(i.Operands, ", ")
}

// Equal reports whether both instructions are identical.
func (i Instruction) Equal(other Instruction) bool {
	return i.SourceLine == other.SourceLine &&
		i.Text == other.Text &&
		i.Opcode == other.Opcode &&
		slices.Equal(i.Operands, other.Operands) &&
		i.Err == other.Err
}

// Program is the result of assembling a source text: the list of
// instructions and a table mapping label names to instruction indices.
type Program struct {
	Instructions []Instruction  `json:"instructions"`
	Labels       map[string]int `json:"labels"`
}

// Len returns the number of instructions in the program.
func (p *Program) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Instructions)
}

// Lookup resolves a label to the index of the instruction it refers to.
func (p *Program) Lookup(label string) (int, bool) {
	if p == nil {
		return 0, false
	}
	pos, found := p.Labels[label]
	return pos, found
}

// Equal reports whether both programs have the same instructions and labels.
func (p *Program) Equal(other *Program) bool {
	if p == nil || other == nil {
		return p == other
	}
	return slices.EqualFunc(p.Instructions, other.Instructions, Instruction.Equal) &&
		maps.Equal(p.Labels, other.Labels)
}

// String produces a listing of the program with labels placed in front of the
// instruction they are referring to.
func (p *Program) String() string {
	if p == nil {
		return "<nil>"
	}
	byPosition := map[int][]string{}
	for label, pos := range p.Labels {
		byPosition[pos] = append(byPosition[pos], label)
	}
	builder := strings.Builder{}
	printLabels := func(pos int) {
		labels := byPosition[pos]
		slices.Sort(labels)
		for _, label := range labels {
			builder.WriteString(label + ":\n")
		}
	}
	for i, instruction := range p.Instructions {
		printLabels(i)
		builder.WriteString(fmt.Sprintf("0x%02x: %v\n", i, instruction))
	}
	printLabels(len(p.Instructions))
	return builder.String()
}
