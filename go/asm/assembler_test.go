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

import (
	"errors"
	"testing"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"golang.org/x/exp/slices"
)

func TestAssemble_ProducesInstructionsAndLabels(t *testing.T) {
	source := "start:\n  mov R0, 5 ; load five\n\nADD R0,R1\nend:\nHLT"
	program, err := Assemble(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []asmbox.Instruction{
		{SourceLine: 2, Text: "mov R0, 5", Opcode: "MOV", Operands: []string{"R0", "5"}},
		{SourceLine: 4, Text: "ADD R0,R1", Opcode: "ADD", Operands: []string{"R0", "R1"}},
		{SourceLine: 6, Text: "HLT", Opcode: "HLT"},
	}
	if !slices.EqualFunc(want, program.Instructions, asmbox.Instruction.Equal) {
		t.Errorf("unexpected instructions, wanted %v, got %v", want, program.Instructions)
	}

	if want, got := map[string]int{"start": 0, "end": 2}, program.Labels; len(want) != len(got) || want["start"] != got["start"] || want["end"] != got["end"] {
		t.Errorf("unexpected labels, wanted %v, got %v", want, got)
	}
}

func TestAssemble_EdgeCases(t *testing.T) {
	tests := map[string]struct {
		source       string
		instructions int
		labels       map[string]int
	}{
		"empty": {
			source: "",
			labels: map[string]int{},
		},
		"only comments": {
			source: "; nothing\n   ;more nothing\n",
			labels: map[string]int{},
		},
		"consecutive labels": {
			source:       "a:\nb:\nHLT",
			instructions: 1,
			labels:       map[string]int{"a": 0, "b": 0},
		},
		"trailing label": {
			source:       "HLT\nend:",
			instructions: 1,
			labels:       map[string]int{"end": 1},
		},
		"redefined label": {
			source:       "x:\nHLT\nx:\nHLT",
			instructions: 2,
			labels:       map[string]int{"x": 1},
		},
		"label with spaces before colon": {
			source:       "loop  :\nJMP loop",
			instructions: 1,
			labels:       map[string]int{"loop": 0},
		},
		"windows line endings": {
			source:       "l:\r\nMOV R0, 1\r\nHLT\r\n",
			instructions: 2,
			labels:       map[string]int{"l": 0},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			program, err := Assemble(test.source)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if want, got := test.instructions, program.Len(); want != got {
				t.Errorf("unexpected number of instructions, wanted %d, got %d", want, got)
			}
			if want, got := len(test.labels), len(program.Labels); want != got {
				t.Errorf("unexpected number of labels, wanted %d, got %d", want, got)
			}
			for label, want := range test.labels {
				if got, found := program.Lookup(label); !found || want != got {
					t.Errorf("unexpected position of label %s, wanted %d, got %d", label, want, got)
				}
			}
		})
	}
}

func TestAssemble_OperandsAreSplitAndTrimmed(t *testing.T) {
	tests := map[string][]string{
		"HLT":                      nil,
		"RET   ":                   nil,
		"OUT R0":                   {"R0"},
		"MOV   [R1] ,   R2":        {"[R1]", "R2"},
		"SETPIXEL 10,10,16711680":  {"10", "10", "16711680"},
		"OUTC ','":                 {"','"},
		"MOV R0, ' '":              {"R0", "' '"},
		"CMP\tR0,\t'a'":            {"R0", "'a'"},
		"jmp loop ; go back again": {"loop"},
	}
	for source, want := range tests {
		t.Run(source, func(t *testing.T) {
			program, err := Assemble(source)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if program.Len() != 1 {
				t.Fatalf("expected a single instruction, got %d", program.Len())
			}
			if got := program.Instructions[0].Operands; !slices.Equal(want, got) {
				t.Errorf("unexpected operands, wanted %q, got %q", want, got)
			}
		})
	}
}

func TestAssemble_OpCodesAreUpperCased(t *testing.T) {
	program, err := Assemble("mOv R0, 1\nfoo")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := "MOV", program.Instructions[0].Opcode; want != got {
		t.Errorf("unexpected op-code, wanted %s, got %s", want, got)
	}
	// Unknown op-codes are accepted by the assembler.
	if want, got := "FOO", program.Instructions[1].Opcode; want != got {
		t.Errorf("unexpected op-code, wanted %s, got %s", want, got)
	}
}

func TestAssemble_EmptyOperandsMarkInstructionInvalid(t *testing.T) {
	for _, source := range []string{"MOV R0,,R1", "MOV R0,", "ADD ,R1"} {
		program, err := Assemble(source)
		if err != nil {
			t.Fatalf("unexpected error for %q: %v", source, err)
		}
		if program.Instructions[0].IsValid() {
			t.Errorf("instruction %q should be marked invalid", source)
		}
	}
}

func TestAssemble_MalformedLabelsAreSyntaxErrors(t *testing.T) {
	for _, source := range []string{":", "HLT\n  :", "two words:", "a,b:", "[x]:"} {
		_, err := Assemble(source)
		var syntaxError *SyntaxError
		if !errors.As(err, &syntaxError) {
			t.Errorf("expected syntax error for %q, got %v", source, err)
		}
	}
}

func TestAssemble_SyntaxErrorReportsLine(t *testing.T) {
	_, err := Assemble("HLT\n\nbad label:")
	var syntaxError *SyntaxError
	if !errors.As(err, &syntaxError) {
		t.Fatalf("expected syntax error, got %v", err)
	}
	if want, got := 3, syntaxError.Line; want != got {
		t.Errorf("unexpected line, wanted %d, got %d", want, got)
	}
}

func TestAssemble_IsDeterministic(t *testing.T) {
	source := "main:\nMOV R0, 5\nCALL f\nOUT R0\nHLT\nf:\nADD R0, 1\nRET\n"
	a, err := Assemble(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Assemble(source)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.Equal(b) {
		t.Errorf("assembling the same source twice produced different programs:\n%v\n%v", a, b)
	}
}
