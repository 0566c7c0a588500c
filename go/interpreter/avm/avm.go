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
	"io"
	"os"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

func init() {
	asmbox.MustRegisterInterpreterFactory("avm", func(any) (asmbox.Interpreter, error) {
		return NewVm(Config{})
	})

	// The logging configuration writes its trace to the io.Writer passed as
	// configuration, or to stdout if there is none.
	asmbox.MustRegisterInterpreterFactory("avm-logging", func(config any) (asmbox.Interpreter, error) {
		writer, ok := config.(io.Writer)
		if !ok || writer == nil {
			writer = os.Stdout
		}
		return NewVm(Config{Trace: writer})
	})

	asmbox.MustRegisterInterpreterFactory("avm-stats", func(any) (asmbox.Interpreter, error) {
		return NewVm(Config{Statistics: true})
	})
}

type Config struct {
	// Trace, if set, receives a line for every executed instruction.
	Trace io.Writer
	// Statistics enables the collection of opcode statistics, reported by
	// DumpProfile.
	Statistics bool
}

var _ asmbox.ProfilingInterpreter = (*avm)(nil)

type avm struct {
	config Config
	runner runner
}

func NewVm(config Config) (*avm, error) {
	if config.Trace != nil && config.Statistics {
		return nil, fmt.Errorf("tracing and statistics can not be combined")
	}
	var runner runner = vanillaRunner{}
	if config.Trace != nil {
		runner = newLogger(config.Trace)
	} else if config.Statistics {
		runner = &statisticRunner{stats: newStatistics()}
	}
	return &avm{config: config, runner: runner}, nil
}

// NewMachine creates a machine for the given program using the runner of
// this interpreter configuration.
func (v *avm) NewMachine(program *asmbox.Program, host asmbox.Host) *Machine {
	res := NewMachine(program, host)
	res.runner = v.runner
	return res
}

func (v *avm) Run(params asmbox.Parameters) (asmbox.Result, error) {
	m := v.NewMachine(params.Program, params.Host)
	if params.State != nil {
		m.SetState(*params.State)
	}
	status, err := m.Run(params.Context, params.MaxSteps)
	if err != nil {
		return asmbox.Result{}, err
	}
	return asmbox.Result{
		Status: status,
		State:  m.State(),
		Steps:  m.Steps(),
		Err:    m.Err(),
	}, nil
}

func (v *avm) DumpProfile() {
	if statsRunner, ok := v.runner.(*statisticRunner); ok {
		fmt.Print(statsRunner.getSummary())
	}
}

func (v *avm) ResetProfile() {
	if statsRunner, ok := v.runner.(*statisticRunner); ok {
		statsRunner.reset()
	}
}
