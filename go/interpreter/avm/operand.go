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
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// operandKind classifies the location an operand refers to.
type operandKind byte

const (
	registerOperand  operandKind = iota // < a register, e.g. R0
	memoryOperand                       // < a memory cell, e.g. [12] or [R1]
	immediateOperand                    // < a constant, e.g. 42 or 'a'
)

// operand is a resolved instruction operand. Memory operands carry the
// address that was valid at the time of the resolution.
type operand struct {
	kind     operandKind
	register asmbox.Register
	address  asmbox.Word
	value    asmbox.Word
}

// resolve classifies the given operand text. The content of registers used
// for indirect memory references is read at resolution time.
func (m *Machine) resolve(text string) (operand, error) {
	if reg, found := asmbox.ParseRegister(text); found {
		return operand{kind: registerOperand, register: reg}, nil
	}

	if strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]") && len(text) >= 2 {
		inner := strings.TrimSpace(text[1 : len(text)-1])
		if isDigits(inner) {
			addr, err := strconv.ParseInt(inner, 10, 64)
			if err != nil || !asmbox.IsValidAddress(asmbox.Word(addr)) {
				return operand{}, fmt.Errorf("%w: %s", ErrInvalidMemoryAddress, inner)
			}
			return operand{kind: memoryOperand, address: asmbox.Word(addr)}, nil
		}
		reg, found := asmbox.ParseRegister(inner)
		if !found {
			return operand{}, fmt.Errorf("%w: %s", ErrUnknownRegister, inner)
		}
		addr := m.state.Registers[reg]
		if !asmbox.IsValidAddress(addr) {
			return operand{}, fmt.Errorf("%w: %d (from %v)", ErrInvalidMemoryAddress, addr, reg)
		}
		return operand{kind: memoryOperand, address: addr}, nil
	}

	if isDigits(text) {
		value, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return operand{}, fmt.Errorf("%w: %s", ErrInvalidOperand, text)
		}
		return operand{kind: immediateOperand, value: asmbox.Word(value)}, nil
	}

	if len(text) >= 3 && text[0] == '\'' && text[len(text)-1] == '\'' {
		inner := text[1 : len(text)-1]
		if r, size := utf8.DecodeRuneInString(inner); r != utf8.RuneError && size == len(inner) {
			return operand{kind: immediateOperand, value: asmbox.Word(r)}, nil
		}
	}

	return operand{}, fmt.Errorf("%w: %s", ErrInvalidOperand, text)
}

// resolveTarget is like resolve but rejects operands that can not be
// written to.
func (m *Machine) resolveTarget(text string) (operand, error) {
	res, err := m.resolve(text)
	if err != nil {
		return res, err
	}
	if res.kind == immediateOperand {
		return res, fmt.Errorf("%w: cannot write to %s", ErrInvalidOperand, text)
	}
	return res, nil
}

// valueOf resolves the given operand and reads its current value.
func (m *Machine) valueOf(text string) (asmbox.Word, error) {
	op, err := m.resolve(text)
	if err != nil {
		return 0, err
	}
	return m.load(op), nil
}

func (m *Machine) load(op operand) asmbox.Word {
	switch op.kind {
	case registerOperand:
		return m.state.Registers[op.register]
	case memoryOperand:
		return m.state.Memory[op.address]
	}
	return op.value
}

// store writes to a target obtained from resolveTarget.
func (m *Machine) store(op operand, value asmbox.Word) {
	switch op.kind {
	case registerOperand:
		m.state.Registers[op.register] = value
	case memoryOperand:
		m.state.Memory[op.address] = value
	}
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		if text[i] < '0' || text[i] > '9' {
			return false
		}
	}
	return true
}
