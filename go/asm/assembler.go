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
	"fmt"
	"strings"
	"unicode"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// SyntaxError is reported by the assembler for source lines that can not be
// assembled at all.
type SyntaxError struct {
	Line   int    // < 1-based line number
	Text   string // < offending source line, comments removed
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error in line %d (%s): %s", e.Line, e.Text, e.Reason)
}

const (
	commentMarker = ';'
	labelSuffix   = ":"
)

// Assemble translates the given source text into a program. Assembly happens
// in two passes over the source lines:
//   - the first pass strips comments, records the position of every label and
//     collects the remaining instruction lines,
//   - the second pass splits each instruction line into op-code and operands.
//
// Since labels are only resolved when a jump is executed, forward references
// are supported. Neither op-codes nor operands are validated here; invalid
// instructions fail at execution time. An error is only reported for lines
// that can not be interpreted at all, e.g. malformed labels.
func Assemble(source string) (*asmbox.Program, error) {
	type pending struct {
		line int
		text string
	}

	// First pass: labels and instruction lines.
	labels := map[string]int{}
	lines := []pending{}
	for i, line := range strings.Split(source, "\n") {
		text := stripComment(line)
		if text == "" {
			continue
		}
		if strings.HasSuffix(text, labelSuffix) {
			name := strings.TrimSpace(strings.TrimSuffix(text, labelSuffix))
			if err := checkLabel(name); err != nil {
				return nil, &SyntaxError{Line: i + 1, Text: text, Reason: err.Error()}
			}
			labels[name] = len(lines) // < redefinitions overwrite, last one wins
			continue
		}
		lines = append(lines, pending{line: i + 1, text: text})
	}

	// Second pass: tokenize instructions.
	instructions := make([]asmbox.Instruction, 0, len(lines))
	for _, line := range lines {
		instructions = append(instructions, parseInstruction(line.line, line.text))
	}

	return &asmbox.Program{
		Instructions: instructions,
		Labels:       labels,
	}, nil
}

// stripComment removes everything starting at the first comment marker and
// trims the remaining text.
func stripComment(line string) string {
	if pos := strings.IndexByte(line, commentMarker); pos >= 0 {
		line = line[:pos]
	}
	return strings.TrimSpace(line)
}

func checkLabel(name string) error {
	if name == "" {
		return fmt.Errorf("empty label name")
	}
	if pos := strings.IndexFunc(name, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune(",[]'", r)
	}); pos >= 0 {
		return fmt.Errorf("invalid character %q in label %q", name[pos], name)
	}
	return nil
}

func parseInstruction(line int, text string) asmbox.Instruction {
	res := asmbox.Instruction{
		SourceLine: line,
		Text:       text,
	}

	mnemonic, rest := text, ""
	if pos := strings.IndexFunc(text, unicode.IsSpace); pos >= 0 {
		mnemonic, rest = text[:pos], strings.TrimSpace(text[pos:])
	}
	res.Opcode = strings.ToUpper(mnemonic)

	if rest == "" {
		return res
	}
	res.Operands = splitOperands(rest)
	for i, operand := range res.Operands {
		if operand == "" {
			res.Err = fmt.Sprintf("missing operand %d", i+1)
			break
		}
	}
	return res
}

// splitOperands splits the given text at commas that are not part of a
// character literal and trims the resulting operands.
func splitOperands(text string) []string {
	res := []string{}
	start := 0
	quoted := false
	for i, r := range text {
		switch {
		case r == '\'':
			quoted = !quoted
		case r == ',' && !quoted:
			res = append(res, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	}
	return append(res, strings.TrimSpace(text[start:]))
}
