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
	"fmt"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// --- Runners ---

type runner interface {
	// run executes the program of the given machine until it stops.
	// It returns the status of the execution:
	// - faults of the executed program shall return asmbox.Errored,
	// - error is reserved for interruptions of the run (cancellation,
	//   exhausted step budget) and failures of the runner itself.
	run(*Machine) (asmbox.Status, error)
}

// vanillaRunner is the default runner that executes the program without any
// additional features.
type vanillaRunner struct{}

func (vanillaRunner) run(m *Machine) (asmbox.Status, error) {
	return steps(m, false)
}

// --- Execution ---

// step executes the instruction pointed to by the instruction pointer.
func step(m *Machine) (asmbox.Status, error) {
	return steps(m, true)
}

// steps executes the program of the given machine. If oneStepOnly is true,
// only the instruction pointed to by the instruction pointer is executed.
// Program faults put the machine into the Errored status and are not
// returned as an error. An error is returned if the context of the current
// run was cancelled or the step budget is exhausted before an instruction
// could be executed.
func steps(m *Machine, oneStepOnly bool) (asmbox.Status, error) {
	for m.status == asmbox.Running {
		if m.halted() {
			return m.status, nil
		}

		if m.maxSteps > 0 && m.steps >= m.maxSteps {
			return m.status, ErrStepBudgetExhausted
		}
		select {
		case <-m.done:
			return m.status, m.ctx.Err()
		default:
		}

		m.steps++
		if err := execute(m); err != nil {
			m.fail(err)
			return m.status, nil
		}

		if m.status == asmbox.Running && m.halted() {
			return m.status, nil
		}
		if oneStepOnly {
			break
		}
	}
	return m.status, nil
}

// halted checks whether the instruction pointer has left the program and
// halts the machine if this is the case.
func (m *Machine) halted() bool {
	if int(m.state.Registers[asmbox.IP]) >= len(m.code) && m.state.Registers[asmbox.IP] >= 0 {
		m.status = asmbox.Halted
		return true
	}
	return false
}

// execute runs a single instruction. Instructions are applied atomically:
// either the instruction completes, or an error is returned and the machine
// state is left unmodified.
func execute(m *Machine) error {
	ip := m.state.Registers[asmbox.IP]
	if ip < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInstructionPointer, ip)
	}
	instr := &m.code[ip]
	if !instr.source.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalidInstruction, instr.source.Err)
	}
	if want := instr.opcode.NumOperands(); len(instr.operands) < want {
		return fmt.Errorf("%w: %v expects %d operand(s), got %d", ErrInvalidOperand, instr.opcode, want, len(instr.operands))
	}

	var err error
	jumped := false

	switch instr.opcode {
	case asm.MOV:
		err = opMov(m, instr)
	case asm.ADD:
		err = opArithmetic(m, instr, add)
	case asm.SUB:
		err = opArithmetic(m, instr, sub)
	case asm.MUL:
		err = opArithmetic(m, instr, mul)
	case asm.DIV:
		err = opArithmetic(m, instr, div)
	case asm.AND:
		err = opArithmetic(m, instr, and)
	case asm.OR:
		err = opArithmetic(m, instr, or)
	case asm.XOR:
		err = opArithmetic(m, instr, xor)
	case asm.NOT:
		err = opNot(m, instr)
	case asm.CMP:
		err = opCmp(m, instr)
	case asm.JMP:
		jumped, err = opJump(m, instr, 0)
	case asm.JE:
		jumped, err = opJump(m, instr, asmbox.FlagZero)
	case asm.JNE:
		jumped, err = opJne(m, instr)
	case asm.JG:
		jumped, err = opJump(m, instr, asmbox.FlagPositive)
	case asm.JL:
		jumped, err = opJump(m, instr, asmbox.FlagNegative)
	case asm.CALL:
		jumped, err = opCall(m, instr)
	case asm.RET:
		jumped, err = opRet(m)
	case asm.PUSH:
		err = opPush(m, instr)
	case asm.POP:
		err = opPop(m, instr)
	case asm.OUT:
		err = opOut(m, instr, false)
	case asm.OUTC:
		err = opOut(m, instr, true)
	case asm.SETPIXEL:
		err = opSetPixel(m, instr)
	case asm.UPDATESCREEN:
		opUpdateScreen(m)
	case asm.HLT:
		m.status = asmbox.Halted
	default:
		err = fmt.Errorf("%w: %s", ErrUnknownOpcode, instr.source.Opcode)
	}

	if err != nil {
		return err
	}
	if !jumped && m.status == asmbox.Running {
		m.state.Registers[asmbox.IP]++
	}
	return nil
}
