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

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// Operations are implemented such that all operands are resolved before the
// machine state is modified. Thus, a failing operation has no effect.

func opMov(m *Machine, instr *instruction) error {
	dst, err := m.resolveTarget(instr.operands[0])
	if err != nil {
		return err
	}
	value, err := m.valueOf(instr.operands[1])
	if err != nil {
		return err
	}
	m.store(dst, value)
	return nil
}

func add(a, b asmbox.Word) (asmbox.Word, error) { return a + b, nil }
func sub(a, b asmbox.Word) (asmbox.Word, error) { return a - b, nil }
func mul(a, b asmbox.Word) (asmbox.Word, error) { return a * b, nil }
func and(a, b asmbox.Word) (asmbox.Word, error) { return a & b, nil }
func or(a, b asmbox.Word) (asmbox.Word, error)  { return a | b, nil }
func xor(a, b asmbox.Word) (asmbox.Word, error) { return a ^ b, nil }

// div computes the floored quotient of a and b.
func div(a, b asmbox.Word) (asmbox.Word, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	res := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		res--
	}
	return res, nil
}

func opArithmetic(m *Machine, instr *instruction, op func(a, b asmbox.Word) (asmbox.Word, error)) error {
	dst, err := m.resolveTarget(instr.operands[0])
	if err != nil {
		return err
	}
	value, err := m.valueOf(instr.operands[1])
	if err != nil {
		return err
	}
	res, err := op(m.load(dst), value)
	if err != nil {
		return err
	}
	m.store(dst, res)
	m.setFlags(res)
	return nil
}

func opNot(m *Machine, instr *instruction) error {
	dst, err := m.resolveTarget(instr.operands[0])
	if err != nil {
		return err
	}
	res := ^m.load(dst)
	m.store(dst, res)
	m.setFlags(res)
	return nil
}

func opCmp(m *Machine, instr *instruction) error {
	a, err := m.valueOf(instr.operands[0])
	if err != nil {
		return err
	}
	b, err := m.valueOf(instr.operands[1])
	if err != nil {
		return err
	}
	// The flags reflect the order of the operands, even if a - b overflows.
	var flags asmbox.Flags
	switch {
	case a < b:
		flags = asmbox.FlagNegative
	case a == b:
		flags = asmbox.FlagZero
	default:
		flags = asmbox.FlagPositive
	}
	m.state.Registers[asmbox.FLAGS] = asmbox.Word(flags)
	return nil
}

func (m *Machine) setFlags(v asmbox.Word) {
	m.state.Registers[asmbox.FLAGS] = asmbox.Word(asmbox.FlagsOf(v))
}

func (m *Machine) flags() asmbox.Flags {
	return asmbox.Flags(m.state.Registers[asmbox.FLAGS])
}

// --- Control flow ---

func (m *Machine) jumpTo(label string) error {
	target, found := m.program.Lookup(label)
	if !found {
		return fmt.Errorf("%w: %s", ErrUnknownLabel, label)
	}
	m.state.Registers[asmbox.IP] = asmbox.Word(target)
	return nil
}

// opJump jumps to the label of the instruction if any of the given flags is
// set. A zero condition jumps unconditionally. Labels are only resolved if
// the jump is taken.
func opJump(m *Machine, instr *instruction, condition asmbox.Flags) (bool, error) {
	if condition != 0 && m.flags()&condition == 0 {
		return false, nil
	}
	if err := m.jumpTo(instr.operands[0]); err != nil {
		return false, err
	}
	return true, nil
}

func opJne(m *Machine, instr *instruction) (bool, error) {
	if m.flags()&asmbox.FlagZero != 0 {
		return false, nil
	}
	return opJump(m, instr, 0)
}

func opCall(m *Machine, instr *instruction) (bool, error) {
	sp := m.state.Registers[asmbox.SP]
	if !asmbox.IsValidAddress(sp) {
		return false, fmt.Errorf("%w: SP=%d", ErrStackOverflow, sp)
	}
	ret := m.state.Registers[asmbox.IP] + 1
	if err := m.jumpTo(instr.operands[0]); err != nil {
		return false, err
	}
	m.state.Memory[sp] = ret
	m.state.Registers[asmbox.SP] = sp - 1
	return true, nil
}

func opRet(m *Machine) (bool, error) {
	sp := m.state.Registers[asmbox.SP] + 1
	if !asmbox.IsValidAddress(sp) {
		return false, fmt.Errorf("%w: SP=%d", ErrStackUnderflow, sp-1)
	}
	m.state.Registers[asmbox.SP] = sp
	m.state.Registers[asmbox.IP] = m.state.Memory[sp]
	return true, nil
}

// --- Stack ---

// opPush stores the value of its operand at the cell SP points to and
// decrements SP. SP itself is not bounds checked when it is modified. Instead,
// PUSH and CALL fail with ErrStackOverflow if SP does not address a memory
// cell, and POP and RET fail with ErrStackUnderflow if SP+1 does not. A
// stack that grows past address 0 is therefore a runtime error rather than a
// write to an arbitrary cell.
func opPush(m *Machine, instr *instruction) error {
	sp := m.state.Registers[asmbox.SP]
	if !asmbox.IsValidAddress(sp) {
		return fmt.Errorf("%w: SP=%d", ErrStackOverflow, sp)
	}
	value, err := m.valueOf(instr.operands[0])
	if err != nil {
		return err
	}
	m.state.Memory[sp] = value
	m.state.Registers[asmbox.SP] = sp - 1
	return nil
}

func opPop(m *Machine, instr *instruction) error {
	sp := m.state.Registers[asmbox.SP] + 1
	if !asmbox.IsValidAddress(sp) {
		return fmt.Errorf("%w: SP=%d", ErrStackUnderflow, sp-1)
	}
	dst, err := m.resolveTarget(instr.operands[0])
	if err != nil {
		return err
	}
	m.state.Registers[asmbox.SP] = sp
	m.store(dst, m.state.Memory[sp])
	return nil
}

// --- I/O ---

func opOut(m *Machine, instr *instruction, char bool) error {
	value, err := m.valueOf(instr.operands[0])
	if err != nil {
		return err
	}
	m.host.Output(asmbox.Output{Value: value, Char: char})
	return nil
}

func opSetPixel(m *Machine, instr *instruction) error {
	var args [3]asmbox.Word
	for i := range args {
		value, err := m.valueOf(instr.operands[i])
		if err != nil {
			return err
		}
		args[i] = value
	}
	if m.frame == nil {
		m.frame = asmbox.NewFrame()
	}
	m.frame.SetPixel(args[0], args[1], args[2])
	return nil
}

func opUpdateScreen(m *Machine) {
	if m.frame == nil {
		m.frame = asmbox.NewFrame()
	}
	m.host.UpdateScreen(m.frame.Clone())
}
