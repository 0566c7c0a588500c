// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asm

import "fmt"

// OpCode enumerates the instructions understood by the machine.
type OpCode byte

const (
	INVALID OpCode = iota

	// Data movement and arithmetic
	MOV
	ADD
	SUB
	MUL
	DIV
	AND
	OR
	XOR
	NOT
	CMP

	// Control flow
	JMP
	JE
	JNE
	JG
	JL
	CALL
	RET
	HLT

	// Stack
	PUSH
	POP

	// I/O
	OUT
	OUTC
	SETPIXEL
	UPDATESCREEN

	numOpCodes
)

var opCodeNames = [numOpCodes]string{
	INVALID:      "INVALID",
	MOV:          "MOV",
	ADD:          "ADD",
	SUB:          "SUB",
	MUL:          "MUL",
	DIV:          "DIV",
	AND:          "AND",
	OR:           "OR",
	XOR:          "XOR",
	NOT:          "NOT",
	CMP:          "CMP",
	JMP:          "JMP",
	JE:           "JE",
	JNE:          "JNE",
	JG:           "JG",
	JL:           "JL",
	CALL:         "CALL",
	RET:          "RET",
	HLT:          "HLT",
	PUSH:         "PUSH",
	POP:          "POP",
	OUT:          "OUT",
	OUTC:         "OUTC",
	SETPIXEL:     "SETPIXEL",
	UPDATESCREEN: "UPDATESCREEN",
}

var opCodeOperands = [numOpCodes]int{
	MOV: 2, ADD: 2, SUB: 2, MUL: 2, DIV: 2, AND: 2, OR: 2, XOR: 2, NOT: 1, CMP: 2,
	JMP: 1, JE: 1, JNE: 1, JG: 1, JL: 1, CALL: 1,
	PUSH: 1, POP: 1,
	OUT: 1, OUTC: 1, SETPIXEL: 3,
}

var opCodesByName = func() map[string]OpCode {
	res := make(map[string]OpCode, numOpCodes)
	for op := MOV; op < numOpCodes; op++ {
		res[opCodeNames[op]] = op
	}
	return res
}()

// LookupOpCode maps an upper-case mnemonic to its OpCode. INVALID is returned
// for unknown mnemonics.
func LookupOpCode(mnemonic string) OpCode {
	return opCodesByName[mnemonic]
}

// AllOpCodes returns all valid op-codes in their numeric order.
func AllOpCodes() []OpCode {
	res := make([]OpCode, 0, numOpCodes-1)
	for op := MOV; op < numOpCodes; op++ {
		res = append(res, op)
	}
	return res
}

// IsValid reports whether the op-code names an instruction.
func (o OpCode) IsValid() bool {
	return INVALID < o && o < numOpCodes
}

// NumOperands returns the number of operands required by the op-code.
func (o OpCode) NumOperands() int {
	if !o.IsValid() {
		return 0
	}
	return opCodeOperands[o]
}

// IsJump reports whether the op-code takes a label as its operand.
func (o OpCode) IsJump() bool {
	switch o {
	case JMP, JE, JNE, JG, JL, CALL:
		return true
	}
	return false
}

// SetsFlags reports whether executing the op-code updates the FLAGS register.
func (o OpCode) SetsFlags() bool {
	switch o {
	case ADD, SUB, MUL, DIV, AND, OR, XOR, NOT, CMP:
		return true
	}
	return false
}

func (o OpCode) String() string {
	if o < numOpCodes {
		return opCodeNames[o]
	}
	return fmt.Sprintf("op(%d)", byte(o))
}
