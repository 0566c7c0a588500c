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

const (
	// Resolution errors, raised while interpreting operands.
	ErrInvalidOperand       = asmbox.ConstError("invalid operand")
	ErrUnknownRegister      = asmbox.ConstError("unknown register")
	ErrInvalidMemoryAddress = asmbox.ConstError("invalid memory address")

	// Execution errors.
	ErrUnknownOpcode             = asmbox.ConstError("unknown opcode")
	ErrUnknownLabel              = asmbox.ConstError("unknown label")
	ErrDivisionByZero            = asmbox.ConstError("division by zero")
	ErrInvalidInstruction        = asmbox.ConstError("invalid instruction")
	ErrInvalidInstructionPointer = asmbox.ConstError("invalid instruction pointer")
	ErrStackOverflow             = asmbox.ConstError("stack overflow")
	ErrStackUnderflow            = asmbox.ConstError("stack underflow")

	// Interpreter errors, not caused by the executed program.
	ErrStepBudgetExhausted = asmbox.ConstError("step budget exhausted")
)

// RuntimeError is the fault that stopped a program. It wraps one of the
// errors defined above and names the instruction causing it.
type RuntimeError struct {
	Line int    // < source line of the faulting instruction, 0 if unknown
	Text string // < source text of the faulting instruction
	Err  error
}

func (e *RuntimeError) Error() string {
	if e.Line <= 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (line %d: %s)", e.Err, e.Line, e.Text)
}

func (e *RuntimeError) Unwrap() error {
	return e.Err
}
