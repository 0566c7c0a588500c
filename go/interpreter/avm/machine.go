// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package avm

import (
	"context"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// instruction is the executable form of an assembled instruction.
type instruction struct {
	opcode   asm.OpCode
	operands []string
	source   *asmbox.Instruction
}

// Code is a program decoded for execution.
type Code []instruction

// decode converts the instructions of the given program into their
// executable form. Unknown op-codes are decoded to asm.INVALID.
func decode(program *asmbox.Program) Code {
	res := make(Code, program.Len())
	for i := range res {
		source := &program.Instructions[i]
		res[i] = instruction{
			opcode:   asm.LookupOpCode(source.Opcode),
			operands: source.Operands,
			source:   source,
		}
	}
	return res
}

// Machine is the execution environment of a single program. It contains the
// program, the machine state (registers, memory, and the optional frame
// buffer), and the execution status. A Machine is owned by exactly one
// execution and must not be accessed concurrently.
type Machine struct {
	// Inputs
	program *asmbox.Program
	code    Code
	host    asmbox.Host

	// Execution state
	state  asmbox.State
	frame  asmbox.Frame // < allocated by the first graphics operation
	status asmbox.Status
	err    error
	steps  int

	// Run configuration
	runner   runner
	done     <-chan struct{}
	ctx      context.Context
	maxSteps int
}

// NewMachine creates a machine ready to execute the given program. Output
// of the program is forwarded to the given host, which may be nil.
func NewMachine(program *asmbox.Program, host asmbox.Host) *Machine {
	if program == nil {
		program = &asmbox.Program{}
	}
	if host == nil {
		host = discardHost{}
	}
	return &Machine{
		program: program,
		code:    decode(program),
		host:    host,
		state:   asmbox.NewState(),
		status:  asmbox.Running,
		runner:  vanillaRunner{},
	}
}

// Reset restores the power-on state of the machine, keeping the program.
func (m *Machine) Reset() {
	m.state = asmbox.NewState()
	m.frame = nil
	m.status = asmbox.Running
	m.err = nil
	m.steps = 0
}

// Program returns the program executed by this machine.
func (m *Machine) Program() *asmbox.Program {
	return m.program
}

// State returns a copy of the current registers and memory.
func (m *Machine) State() asmbox.State {
	return m.state
}

// SetState replaces the registers and memory of the machine.
func (m *Machine) SetState(state asmbox.State) {
	m.state = state
}

// Registers returns a copy of the current register file.
func (m *Machine) Registers() asmbox.Registers {
	return m.state.Registers
}

// Memory returns a copy of the current memory.
func (m *Machine) Memory() asmbox.Memory {
	return m.state.Memory
}

// Frame returns a copy of the frame buffer or nil if no graphics operation
// was executed so far.
func (m *Machine) Frame() asmbox.Frame {
	return m.frame.Clone()
}

// Status returns the execution status of the machine.
func (m *Machine) Status() asmbox.Status {
	return m.status
}

// Err returns the runtime error that stopped the program, if any.
func (m *Machine) Err() error {
	return m.err
}

// Steps returns the number of instructions executed since the last reset.
func (m *Machine) Steps() int {
	return m.steps
}

// Step executes a single instruction. Stepping a machine that is no longer
// running has no effect.
func (m *Machine) Step() asmbox.Status {
	// A single step without context and budget can not fail.
	status, _ := step(m)
	return status
}

// Run executes instructions until the program halts or faults. Faults of the
// program are reported through the status and Err. An error is returned if
// the run was interrupted, either by cancelling the context or by exceeding
// the given step budget. Zero or negative budgets disable the limit. An
// interrupted machine remains in the Running status and may be resumed.
func (m *Machine) Run(ctx context.Context, maxSteps int) (asmbox.Status, error) {
	m.ctx, m.done, m.maxSteps = ctx, nil, 0
	if ctx != nil {
		m.done = ctx.Done()
	}
	if maxSteps > 0 {
		m.maxSteps = m.steps + maxSteps
	}
	defer func() {
		m.ctx, m.done, m.maxSteps = nil, nil, 0
	}()
	return m.runner.run(m)
}

// fail moves the machine into the Errored status.
func (m *Machine) fail(err error) {
	res := &RuntimeError{Err: err}
	if ip := m.state.Registers[asmbox.IP]; 0 <= ip && int(ip) < len(m.code) {
		source := m.code[ip].source
		res.Line, res.Text = source.SourceLine, source.Text
	}
	m.status = asmbox.Errored
	m.err = res
}

// discardHost drops all output.
type discardHost struct{}

func (discardHost) Output(asmbox.Output)      {}
func (discardHost) UpdateScreen(asmbox.Frame) {}
