// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asmbox

import (
	"context"
	"fmt"
)

//go:generate mockgen -source interpreter.go -destination interpreter_mock.go -package asmbox

// Interpreter is a component capable of executing assembled programs.
// To obtain an Interpreter instance, client code should use NewInterpreter()
// provided by the registry file in this package.
type Interpreter interface {
	// Run executes the program provided by the parameters and returns the
	// final machine state. Faults of the executed program, such as a division
	// by zero, are reported through the Result with status Errored and do not
	// produce an error. The error is reserved for situations in which the
	// interpreter could not complete the run, e.g. if the context was
	// cancelled or the step budget got exhausted. In such a case the result
	// is undefined. Interpreters are required to be thread-safe. Thus,
	// multiple runs may be conducted in parallel.
	Run(Parameters) (Result, error)
}

// ProfilingInterpreter is an Interpreter collecting execution statistics
// across runs.
type ProfilingInterpreter interface {
	Interpreter
	// ResetProfile discards the statistics collected so far.
	ResetProfile()
	// DumpProfile prints the statistics collected so far to stdout.
	DumpProfile()
}

// Host receives the side-channel output of a running program.
type Host interface {
	// Output is called for every value written by OUT and OUTC.
	Output(Output)
	// UpdateScreen is called by UPDATESCREEN with a copy of the current frame.
	UpdateScreen(Frame)
}

// Parameters summarizes the list of input parameters required for executing
// a program.
type Parameters struct {
	// Context may be used to cancel a run. If nil, the run can not be
	// cancelled.
	Context context.Context
	Program *Program
	// Host receives the output of the program. If nil, output is discarded.
	Host Host
	// State is the initial state of the machine. If nil, the machine starts
	// in the state produced by NewState.
	State *State
	// MaxSteps limits the number of executed instructions. Zero or negative
	// values disable the limit.
	MaxSteps int
}

// Result summarizes the outcome of a program execution.
type Result struct {
	Status Status
	State  State
	// Steps is the number of executed instructions, including a faulting one.
	Steps int
	// Err is the runtime error that stopped the program, set if Status is
	// Errored.
	Err error
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%v after %d steps: %v", r.Status, r.Steps, r.Err)
	}
	return fmt.Sprintf("%v after %d steps", r.Status, r.Steps)
}
