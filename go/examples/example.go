// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"fmt"
	"log"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// Example is an executable program computing a (int)->int function. The
// argument is passed in R0, the result is the single number written by the
// program.
type Example struct {
	exampleSpec
	program *asmbox.Program
}

// exampleSpec specifies a program and a reference function computing the
// same function.
type exampleSpec struct {
	Name      string
	source    string
	reference func(int) int
}

func (s exampleSpec) build() Example {
	program, err := asm.Assemble(s.source)
	if err != nil {
		log.Fatalf("Unable to assemble %s example: %v", s.Name, err)
	}
	return Example{
		exampleSpec: s,
		program:     program,
	}
}

type Result struct {
	Result int
	Steps  int
}

// Source returns the assembly source of this example.
func (e *Example) Source() string {
	return e.source
}

// Program returns the assembled program of this example. It is shared and
// must not be modified.
func (e *Example) Program() *asmbox.Program {
	return e.program
}

// RunOn runs this example on the given interpreter, using the given argument.
func (e *Example) RunOn(interpreter asmbox.Interpreter, argument int) (Result, error) {
	state := asmbox.NewState()
	state.Registers[asmbox.R0] = asmbox.Word(argument)
	host := &resultHost{}
	res, err := interpreter.Run(asmbox.Parameters{
		Program: e.program,
		Host:    host,
		State:   &state,
	})
	if err != nil {
		return Result{}, err
	}
	if res.Status != asmbox.Halted {
		return Result{}, fmt.Errorf("example %s did not halt: %v", e.Name, res)
	}
	if len(host.outputs) != 1 || host.outputs[0].Char {
		return Result{}, fmt.Errorf("unexpected output of example %s: %v", e.Name, host.outputs)
	}
	return Result{
		Result: int(host.outputs[0].Value),
		Steps:  res.Steps,
	}, nil
}

// RunReference runs the reference function of this example to produce the
// expected result.
func (e *Example) RunReference(argument int) int {
	return e.reference(argument)
}

type resultHost struct {
	outputs []asmbox.Output
}

func (h *resultHost) Output(output asmbox.Output) {
	h.outputs = append(h.outputs, output)
}

func (h *resultHost) UpdateScreen(asmbox.Frame) {}

// GetAllExamples returns all examples of this package.
func GetAllExamples() []Example {
	return []Example{
		GetFibExample(),
		GetFactorialExample(),
		GetArithmeticExample(),
		GetStackSumExample(),
	}
}
