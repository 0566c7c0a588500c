// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	cliUtils "github.com/Fantom-foundation/asmbox/go/driver/cli"
	"github.com/Fantom-foundation/asmbox/go/sandbox"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var StepCmd = cli.Command{
	Action:    doStep,
	Name:      "step",
	Usage:     "Executes a program interactively, one instruction at a time",
	ArgsUsage: "<file>",
	Flags:     cliUtils.SandboxFlags,
}

const stepHelp = `commands:
  s, <enter>  execute the next instruction
  c           run until the program ends
  r           print the registers
  m           print the non-zero memory cells
  x           reload the source file and restart the program
  q           quit
`

func doStep(context *cli.Context) error {
	filename, err := sourceFile(context)
	if err != nil {
		return err
	}
	config, err := cliUtils.FetchSandboxConfig(context)
	if err != nil {
		return err
	}
	controller, err := sandbox.NewController(config, cliUtils.VerboseFlag.Fetch(context))
	if err != nil {
		return err
	}
	defer controller.Shutdown()

	// Restarts pick up changes of the source file.
	load := func() (*asmbox.Program, error) {
		return assembleFile(filename, controller.Assemble)
	}
	program, err := load()
	if err != nil {
		return err
	}
	session := controller.CreateSession()
	if err := session.Load(program); err != nil {
		return err
	}

	// The prompt is only shown to interactive users.
	interactive := context.App.Reader == os.Stdin && term.IsTerminal(int(os.Stdin.Fd()))
	debugger := newDebugger(session, program, load, context.App.Writer, interactive)
	return debugger.loop(context.Context, context.App.Reader)
}

// debugger drives a session through commands read line by line.
type debugger struct {
	session  *sandbox.Session
	program  *asmbox.Program
	load     func() (*asmbox.Program, error)
	out      io.Writer
	prompt   bool
	state    asmbox.State
	finished bool
}

// newDebugger creates a debugger for the program loaded into the session.
// On restarts, the program is replaced by the result of load.
func newDebugger(
	session *sandbox.Session,
	program *asmbox.Program,
	load func() (*asmbox.Program, error),
	out io.Writer,
	prompt bool,
) *debugger {
	return &debugger{
		session: session,
		program: program,
		load:    load,
		out:     out,
		prompt:  prompt,
		state:   asmbox.NewState(),
	}
}

func (d *debugger) loop(ctx context.Context, in io.Reader) error {
	d.printNext()
	scanner := bufio.NewScanner(in)
	for {
		if d.prompt {
			fmt.Fprint(d.out, "> ")
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		quit, err := d.execute(ctx, strings.TrimSpace(scanner.Text()))
		if err != nil || quit {
			return err
		}
	}
}

// execute processes a single command and reports whether the debugger
// should quit.
func (d *debugger) execute(ctx context.Context, command string) (bool, error) {
	switch strings.ToLower(command) {
	case "", "s":
		return false, d.advance(ctx, d.session.Step)
	case "c":
		return false, d.advance(ctx, d.session.Run)
	case "r":
		fmt.Fprintln(d.out, d.state.Registers)
	case "m":
		d.printMemory()
	case "x":
		if err := d.session.Reset(); err != nil {
			return false, err
		}
		if err := d.reload(); err != nil {
			return false, err
		}
		d.state = asmbox.NewState()
		d.finished = false
		d.printNext()
	case "q":
		return true, nil
	default:
		fmt.Fprint(d.out, stepHelp)
	}
	return false, nil
}

// reload replaces the program by a freshly loaded one. If it can not be
// loaded, the current program is kept.
func (d *debugger) reload() error {
	program, err := d.load()
	if err != nil {
		fmt.Fprintf(d.out, "keeping current program: %v\n", err)
		return nil
	}
	d.program = program
	return d.session.Load(program)
}

func (d *debugger) advance(ctx context.Context, request func() error) error {
	if d.finished {
		fmt.Fprintln(d.out, "program finished, use x to restart")
		return nil
	}
	if err := request(); err != nil {
		return err
	}
	summary, err := d.session.Wait(ctx)
	if err != nil {
		return err
	}
	for _, output := range summary.Outputs {
		printOutput(d.out, output)
	}
	if summary.Steps > 0 {
		d.state.Registers = summary.Registers
		d.state.Memory = summary.Memory
	}
	switch summary.Status {
	case asmbox.Halted:
		d.finished = true
		fmt.Fprintln(d.out, "halted")
	case asmbox.Errored:
		// Exhausted budgets are reported as errors as well, yet the program
		// may be continued.
		fmt.Fprintf(d.out, "error: %s\n", summary.Err)
	default:
		d.printNext()
	}
	return nil
}

func (d *debugger) printNext() {
	ip := d.state.Registers[asmbox.IP]
	if ip < 0 || int(ip) >= d.program.Len() {
		return
	}
	instruction := d.program.Instructions[ip]
	fmt.Fprintf(d.out, "%d: %v\n", instruction.SourceLine, instruction)
}

func (d *debugger) printMemory() {
	for addr, value := range d.state.Memory {
		if value != 0 {
			fmt.Fprintf(d.out, "[%d] = %d\n", addr, value)
		}
	}
}
