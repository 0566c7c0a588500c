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
	"encoding/json"
	"fmt"
	"strings"
)

// Word is the value held by a register or a memory cell.
type Word int64

// Register identifies one of the fixed machine registers.
type Register int

const (
	R0 Register = iota
	R1
	R2
	R3
	R4
	R5
	R6
	R7
	IP    // < index of the next instruction to be executed
	SP    // < address of the next free stack cell
	FLAGS // < condition code of the last arithmetic or compare operation

	NumRegisters = int(FLAGS) + 1
)

var registerNames = [NumRegisters]string{
	"R0", "R1", "R2", "R3", "R4", "R5", "R6", "R7", "IP", "SP", "FLAGS",
}

func (r Register) String() string {
	if r < 0 || int(r) >= NumRegisters {
		return fmt.Sprintf("Register(%d)", int(r))
	}
	return registerNames[r]
}

// ParseRegister looks up a register by its name. Names are case-sensitive
// and must be given in upper case.
func ParseRegister(name string) (Register, bool) {
	for i, cur := range registerNames {
		if cur == name {
			return Register(i), true
		}
	}
	return 0, false
}

// Registers is the register file of the machine, indexed by Register.
type Registers [NumRegisters]Word

// MarshalJSON encodes the register file as an object mapping register names
// to their values.
func (r Registers) MarshalJSON() ([]byte, error) {
	res := make(map[string]Word, NumRegisters)
	for i, value := range r {
		res[registerNames[i]] = value
	}
	return json.Marshal(res)
}

func (r *Registers) UnmarshalJSON(data []byte) error {
	values := map[string]Word{}
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*r = Registers{}
	for name, value := range values {
		reg, found := ParseRegister(name)
		if !found {
			return fmt.Errorf("unknown register %q", name)
		}
		r[reg] = value
	}
	return nil
}

func (r Registers) String() string {
	builder := strings.Builder{}
	for i, value := range r {
		if i > 0 {
			builder.WriteString(" ")
		}
		if Register(i) == FLAGS {
			builder.WriteString(fmt.Sprintf("%s=%v", registerNames[i], Flags(value)))
			continue
		}
		builder.WriteString(fmt.Sprintf("%s=%d", registerNames[i], value))
	}
	return builder.String()
}

// MemorySize is the number of cells in the machine memory. The stack and
// general data share this address space.
const MemorySize = 256

// Memory is the data memory of the machine, addressed 0..MemorySize-1.
type Memory [MemorySize]Word

// IsValidAddress reports whether the given value addresses a memory cell.
func IsValidAddress(addr Word) bool {
	return 0 <= addr && addr < MemorySize
}

// Flags is the condition code stored in the FLAGS register. After any flag
// setting operation exactly one of the defined bits is set.
type Flags Word

const (
	FlagZero     Flags = 1 << 0
	FlagNegative Flags = 1 << 1
	FlagPositive Flags = 1 << 2
)

// FlagsOf computes the condition code of the given result.
func FlagsOf(v Word) Flags {
	if v == 0 {
		return FlagZero
	}
	if v < 0 {
		return FlagNegative
	}
	return FlagPositive
}

func (f Flags) String() string {
	switch f {
	case 0:
		return "-"
	case FlagZero:
		return "Z"
	case FlagNegative:
		return "N"
	case FlagPositive:
		return "P"
	}
	return fmt.Sprintf("0x%x", int64(f))
}

// State is the complete register and memory content of a machine.
type State struct {
	Registers Registers
	Memory    Memory
}

// NewState returns the power-on state of the machine: all registers and
// memory cells are zero, except SP pointing to the top of memory.
func NewState() State {
	res := State{}
	res.Registers[SP] = MemorySize - 1
	return res
}

// Status enumerates the states of an execution.
type Status byte

const (
	Running Status = iota // < more instructions can be executed
	Halted                // < execution finished, either by HLT or by running off the end
	Errored               // < execution was aborted by a runtime error
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Errored:
		return "errored"
	}
	return fmt.Sprintf("Status(%d)", s)
}
