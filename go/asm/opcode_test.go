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

import "testing"

func TestOpCode_MnemonicsRoundTrip(t *testing.T) {
	for _, op := range AllOpCodes() {
		if got := LookupOpCode(op.String()); got != op {
			t.Errorf("unexpected op-code for %v, got %v", op, got)
		}
	}
}

func TestOpCode_UnknownMnemonicsAreInvalid(t *testing.T) {
	for _, mnemonic := range []string{"", "mov", "NOP", "INVALID", "JMPX"} {
		if got := LookupOpCode(mnemonic); got != INVALID {
			t.Errorf("expected %q to be invalid, got %v", mnemonic, got)
		}
	}
}

func TestOpCode_AllOpCodesAreValid(t *testing.T) {
	ops := AllOpCodes()
	if want, got := int(numOpCodes)-1, len(ops); want != got {
		t.Errorf("unexpected number of op-codes, wanted %d, got %d", want, got)
	}
	for _, op := range ops {
		if !op.IsValid() {
			t.Errorf("%v should be valid", op)
		}
	}
	if INVALID.IsValid() || numOpCodes.IsValid() {
		t.Errorf("sentinels should not be valid")
	}
}

func TestOpCode_NumOperands(t *testing.T) {
	tests := map[OpCode]int{
		MOV:          2,
		NOT:          1,
		JMP:          1,
		RET:          0,
		HLT:          0,
		SETPIXEL:     3,
		UPDATESCREEN: 0,
		INVALID:      0,
	}
	for op, want := range tests {
		if got := op.NumOperands(); want != got {
			t.Errorf("unexpected operand count for %v, wanted %d, got %d", op, want, got)
		}
	}
}

func TestOpCode_StringOfUnknownValues(t *testing.T) {
	if want, got := "op(200)", OpCode(200).String(); want != got {
		t.Errorf("unexpected print, wanted %s, got %s", want, got)
	}
}

func TestOpCode_JumpsAreClassified(t *testing.T) {
	for _, op := range AllOpCodes() {
		want := op == JMP || op == JE || op == JNE || op == JG || op == JL || op == CALL
		if got := op.IsJump(); want != got {
			t.Errorf("unexpected jump classification of %v: %t", op, got)
		}
	}
}
