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
	"errors"
	"testing"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

func TestOperand_Resolve(t *testing.T) {
	m := NewMachine(nil, nil)
	state := asmbox.NewState()
	state.Registers[asmbox.R1] = 17
	state.Registers[asmbox.R2] = 256
	state.Registers[asmbox.R3] = -1
	m.SetState(state)

	tests := map[string]struct {
		want operand
		err  error
	}{
		"R0":     {want: operand{kind: registerOperand, register: asmbox.R0}},
		"R7":     {want: operand{kind: registerOperand, register: asmbox.R7}},
		"IP":     {want: operand{kind: registerOperand, register: asmbox.IP}},
		"SP":     {want: operand{kind: registerOperand, register: asmbox.SP}},
		"FLAGS":  {want: operand{kind: registerOperand, register: asmbox.FLAGS}},
		"[0]":    {want: operand{kind: memoryOperand, address: 0}},
		"[255]":  {want: operand{kind: memoryOperand, address: 255}},
		"[ 12 ]": {want: operand{kind: memoryOperand, address: 12}},
		"[R1]":   {want: operand{kind: memoryOperand, address: 17}},
		"0":      {want: operand{kind: immediateOperand, value: 0}},
		"42":     {want: operand{kind: immediateOperand, value: 42}},
		"'a'":    {want: operand{kind: immediateOperand, value: 'a'}},
		"' '":    {want: operand{kind: immediateOperand, value: ' '}},
		"'ü'":    {want: operand{kind: immediateOperand, value: 'ü'}},

		"[256]":                  {err: ErrInvalidMemoryAddress},
		"[99999999999999999999]": {err: ErrInvalidMemoryAddress},
		"[R2]":                   {err: ErrInvalidMemoryAddress},
		"[R3]":                   {err: ErrInvalidMemoryAddress},
		"[R8]":                   {err: ErrUnknownRegister},
		"[]":                     {err: ErrUnknownRegister},
		"R8":                     {err: ErrInvalidOperand},
		"r0":                     {err: ErrInvalidOperand},
		"-1":                     {err: ErrInvalidOperand},
		"0x10":                   {err: ErrInvalidOperand},
		"99999999999999999999":   {err: ErrInvalidOperand},
		"''":                     {err: ErrInvalidOperand},
		"'ab'":                   {err: ErrInvalidOperand},
		"label":                  {err: ErrInvalidOperand},
		"[12":                    {err: ErrInvalidOperand},
	}

	for text, test := range tests {
		t.Run(text, func(t *testing.T) {
			got, err := m.resolve(text)
			if test.err != nil {
				if !errors.Is(err, test.err) {
					t.Errorf("unexpected error, wanted %v, got %v", test.err, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want := test.want; want != got {
				t.Errorf("unexpected operand, wanted %+v, got %+v", want, got)
			}
		})
	}
}

func TestOperand_ResolveTargetRejectsImmediates(t *testing.T) {
	m := NewMachine(nil, nil)
	for _, text := range []string{"1", "'a'"} {
		if _, err := m.resolveTarget(text); !errors.Is(err, ErrInvalidOperand) {
			t.Errorf("unexpected error for %s, wanted %v, got %v", text, ErrInvalidOperand, err)
		}
	}
	for _, text := range []string{"R0", "[1]", "FLAGS"} {
		if _, err := m.resolveTarget(text); err != nil {
			t.Errorf("unexpected error for %s: %v", text, err)
		}
	}
}

func TestOperand_LoadAndStore(t *testing.T) {
	m := NewMachine(nil, nil)
	for _, text := range []string{"R0", "[1]", "SP"} {
		op, err := m.resolveTarget(text)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		m.store(op, 12)
		if want, got := asmbox.Word(12), m.load(op); want != got {
			t.Errorf("unexpected value of %s, wanted %d, got %d", text, want, got)
		}
	}
	if want, got := asmbox.Word(12), m.Memory()[1]; want != got {
		t.Errorf("unexpected memory content, wanted %d, got %d", want, got)
	}
}
