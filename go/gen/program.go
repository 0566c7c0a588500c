// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package gen

import (
	"fmt"
	"strings"

	"pgregory.net/rand"
)

// ProgramGenerator produces random assembly sources of programs that are
// guaranteed to terminate, either by halting or by a runtime fault. Loops
// are bounded by a counter register, jumps within the main body only go
// forward and subroutines are straight-line code ending in RET.
type ProgramGenerator struct {
	// MaxInstructions bounds the number of random instructions of the main
	// body. Defaults to 32.
	MaxInstructions int
	// MaxSubroutines bounds the number of generated subroutines. Defaults to 2.
	MaxSubroutines int
	// WithGraphics enables SETPIXEL and UPDATESCREEN instructions.
	WithGraphics bool
	// WithFaults enables operands and instructions that may fail at runtime,
	// e.g. divisions by zero and register-indirect memory accesses.
	WithFaults bool
}

func NewProgramGenerator() *ProgramGenerator {
	return &ProgramGenerator{
		MaxInstructions: 32,
		MaxSubroutines:  2,
	}
}

const (
	// counterRegister is reserved for loop counters.
	counterRegister = "R7"
	// dataLimit is the first memory address not used for data, the cells
	// above are left to the stack.
	dataLimit    = 192
	maxLoopCount = 8
)

var dataRegisters = []string{"R0", "R1", "R2", "R3", "R4", "R5", "R6"}

var binaryOps = []string{"MOV", "ADD", "SUB", "MUL", "DIV", "AND", "OR", "XOR", "CMP"}

var conditionalJumps = []string{"JE", "JNE", "JG", "JL", "JMP"}

type programBuilder struct {
	gen    *ProgramGenerator
	rnd    *rand.Rand
	lines  []string
	labels int
}

func (b *programBuilder) emit(format string, args ...any) {
	b.lines = append(b.lines, fmt.Sprintf(format, args...))
}

func (b *programBuilder) newLabel(prefix string) string {
	b.labels++
	return fmt.Sprintf("%s_%d", prefix, b.labels)
}

// Generate produces the source of a random terminating program.
func (g *ProgramGenerator) Generate(rnd *rand.Rand) string {
	maxInstructions := g.MaxInstructions
	if maxInstructions <= 0 {
		maxInstructions = 32
	}
	maxSubroutines := g.MaxSubroutines
	if maxSubroutines < 0 {
		maxSubroutines = 0
	}

	b := &programBuilder{gen: g, rnd: rnd}
	subroutines := make([]string, rnd.Intn(maxSubroutines+1))
	for i := range subroutines {
		subroutines[i] = fmt.Sprintf("fn_%d", i)
	}

	// Main body.
	b.body(rnd.Intn(maxInstructions+1), subroutines)
	b.emit("HLT")

	// Subroutines.
	for _, name := range subroutines {
		b.emit("%s:", name)
		for i, n := 0, rnd.Intn(maxInstructions/4+1); i < n; i++ {
			b.instruction()
		}
		b.emit("RET")
	}

	return strings.Join(b.lines, "\n") + "\n"
}

// body emits n random blocks which may call the given subroutines.
func (b *programBuilder) body(n int, subroutines []string) {
	for i := 0; i < n; i++ {
		switch b.rnd.Intn(10) {
		case 0:
			b.forwardJump(subroutines)
		case 1:
			b.loop()
		case 2:
			if len(subroutines) > 0 {
				b.emit("CALL %s", subroutines[b.rnd.Intn(len(subroutines))])
				continue
			}
			b.instruction()
		case 3:
			b.emit("PUSH %s", b.source())
			b.instruction()
			b.emit("POP %s", b.target())
		default:
			b.instruction()
		}
	}
}

// forwardJump emits a conditional jump over a few instructions.
func (b *programBuilder) forwardJump(subroutines []string) {
	label := b.newLabel("skip")
	b.emit("CMP %s, %s", b.source(), b.source())
	b.emit("%s %s", conditionalJumps[b.rnd.Intn(len(conditionalJumps))], label)
	b.body(b.rnd.Intn(3), subroutines)
	b.emit("%s:", label)
}

// loop emits a loop executing a few instructions a bounded number of times.
func (b *programBuilder) loop() {
	label := b.newLabel("loop")
	b.emit("MOV %s, %d", counterRegister, 1+b.rnd.Intn(maxLoopCount))
	b.emit("%s:", label)
	for i, n := 0, 1+b.rnd.Intn(3); i < n; i++ {
		b.instruction()
	}
	b.emit("SUB %s, 1", counterRegister)
	b.emit("JNE %s", label)
}

// instruction emits a single instruction without control flow effects.
func (b *programBuilder) instruction() {
	switch n := b.rnd.Intn(20); {
	case n < 12:
		op := binaryOps[b.rnd.Intn(len(binaryOps))]
		if op == "DIV" && !b.gen.WithFaults {
			b.emit("DIV %s, %d", b.target(), 1+b.rnd.Intn(16))
			return
		}
		if op == "CMP" {
			b.emit("CMP %s, %s", b.source(), b.source())
			return
		}
		b.emit("%s %s, %s", op, b.target(), b.source())
	case n < 14:
		b.emit("NOT %s", b.target())
	case n < 16:
		b.emit("OUT %s", b.source())
	case n < 17:
		b.emit("OUTC '%c'", 'a'+rune(b.rnd.Intn(26)))
	case n < 19 && b.gen.WithGraphics:
		b.emit("SETPIXEL %s, %s, %d", b.source(), b.source(), b.rnd.Intn(1<<24))
	case n < 20 && b.gen.WithGraphics:
		b.emit("UPDATESCREEN")
	default:
		b.emit("MOV %s, %s", b.target(), b.source())
	}
}

// target produces a writable operand. Targets never address memory
// indirectly to protect return addresses on the stack.
func (b *programBuilder) target() string {
	if b.rnd.Intn(4) == 0 {
		return fmt.Sprintf("[%d]", b.rnd.Intn(dataLimit))
	}
	return dataRegisters[b.rnd.Intn(len(dataRegisters))]
}

// source produces a readable operand.
func (b *programBuilder) source() string {
	switch b.rnd.Intn(6) {
	case 0, 1:
		return fmt.Sprintf("%d", b.rnd.Intn(256))
	case 2:
		return fmt.Sprintf("'%c'", 'A'+rune(b.rnd.Intn(26)))
	case 3:
		return b.memory()
	}
	return dataRegisters[b.rnd.Intn(len(dataRegisters))]
}

func (b *programBuilder) memory() string {
	if b.gen.WithFaults && b.rnd.Intn(4) == 0 {
		return fmt.Sprintf("[%s]", dataRegisters[b.rnd.Intn(len(dataRegisters))])
	}
	return fmt.Sprintf("[%d]", b.rnd.Intn(dataLimit))
}
