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
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	cliUtils "github.com/Fantom-foundation/asmbox/go/driver/cli"
	"github.com/Fantom-foundation/asmbox/go/gen"
	"github.com/Fantom-foundation/asmbox/go/sandbox"
	"github.com/dsnet/golib/unitconv"
	"github.com/urfave/cli/v2"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var StressCmd = cliUtils.AddCommonFlags(cli.Command{
	Action: doStress,
	Name:   "stress",
	Usage:  "Runs random programs on all interpreters and in a sandbox and compares the results",
	Flags: []cli.Flag{
		cliUtils.JobsFlag,
		cliUtils.SeedFlag,
		cliUtils.CountFlag,
		cliUtils.IsolationFlag,
		cliUtils.VerboseFlag,
		&cli.BoolFlag{
			Name:  "faults",
			Usage: "generate programs which may fail at runtime",
		},
		&cli.BoolFlag{
			Name:  "graphics",
			Usage: "generate programs using the screen",
		},
		&cli.IntFlag{
			Name:  "max-errors",
			Usage: "aborts testing after the given number of issues",
			Value: 10,
		},
	},
})

// stressStepBudget bounds the runs of generated programs, which are expected
// to terminate well before.
const stressStepBudget = 1_000_000

func doStress(context *cli.Context) error {
	isolation, err := cliUtils.IsolationFlag.Fetch(context)
	if err != nil {
		return err
	}
	generator := gen.NewProgramGenerator()
	generator.WithFaults = context.Bool("faults")
	generator.WithGraphics = context.Bool("graphics")

	ctx, stop := signal.NotifyContext(context.Context, os.Interrupt)
	defer stop()

	config := sandbox.Config{
		Isolation: isolation,
		MaxSteps:  stressStepBudget,
	}
	tester, err := newStressTester(config, cliUtils.VerboseFlag.Fetch(context))
	if err != nil {
		return err
	}
	defer tester.controller.Shutdown()

	seed := cliUtils.SeedFlag.Fetch(context)
	maxErrors := context.Int("max-errors")
	out := context.App.Writer

	issues := issuesCollector{}
	printProgress := func(relativeTime time.Duration, rate float64, current int64) {
		fmt.Fprintf(out,
			"[t=%4d:%02d] - Processing ~%s programs per second, total %d, found issues %d\n",
			int(relativeTime.Seconds())/60, int(relativeTime.Seconds())%60,
			unitconv.FormatPrefix(rate, unitconv.SI, 0), current, issues.NumIssues(),
		)
	}

	opRun := func(index int, source string) bool {
		if ctx.Err() != nil {
			return false
		}
		if err := tester.check(ctx, source); err != nil && ctx.Err() == nil {
			issues.AddIssue(index, source, err)
			fmt.Fprintf(out, "Error in program %d: %v\n", index, err)
		}
		return maxErrors <= 0 || issues.NumIssues() < maxErrors
	}

	fmt.Fprintf(out, "Starting stress test with seed %d using %v ...\n", seed, tester.names)
	forEachProgram(generator, opRun, printProgress, cliUtils.JobsFlag.Fetch(context), cliUtils.CountFlag.Fetch(context), seed)
	if err := ctx.Err(); err != nil {
		return err
	}

	if issues.NumIssues() == 0 {
		fmt.Fprintf(out, "All programs produced consistent results!\n")
		return nil
	}
	slices.SortFunc(issues.issues, func(a, b issue) int { return a.index - b.index })
	return reportIssues(out, issues.issues)
}

// reportIssues prints the collected issues and dumps the sources of the
// offending programs into files to aid debugging.
func reportIssues(out io.Writer, issues []issue) error {
	dir, err := os.MkdirTemp("", "asmbox_issues_*")
	if err != nil {
		return fmt.Errorf("failed to create output directory for %d issues", len(issues))
	}
	for _, issue := range issues {
		fmt.Fprintf(out, "----------------------------\n")
		fmt.Fprintf(out, "program %d: %v\n", issue.index, issue.err)
		path := filepath.Join(dir, fmt.Sprintf("issue_%06d.asm", issue.index))
		if err := os.WriteFile(path, []byte(issue.source), 0644); err == nil {
			fmt.Fprintf(out, "Program dumped to %s\n", path)
		} else {
			fmt.Fprintf(out, "failed to dump program: %v\n", err)
		}
	}
	return fmt.Errorf("found %d inconsistent programs", len(issues))
}

// stressTester runs a program on every registered interpreter and in a
// sandbox session and checks that all of them agree on the outcome.
type stressTester struct {
	names        []string
	interpreters map[string]asmbox.Interpreter
	controller   *sandbox.Controller
}

func newStressTester(config sandbox.Config, log *slog.Logger) (*stressTester, error) {
	factories := asmbox.GetAllRegisteredInterpreters()
	names := maps.Keys(factories)
	slices.Sort(names)
	interpreters := make(map[string]asmbox.Interpreter, len(names))
	for _, name := range names {
		// Logging interpreters receive a writer discarding their trace.
		interpreter, err := factories[name](io.Discard)
		if err != nil {
			return nil, fmt.Errorf("failed to create interpreter %s: %w", name, err)
		}
		interpreters[name] = interpreter
	}

	controller, err := sandbox.NewController(config, log)
	if err != nil {
		return nil, err
	}
	return &stressTester{
		names:        names,
		interpreters: interpreters,
		controller:   controller,
	}, nil
}

func (t *stressTester) check(ctx context.Context, source string) error {
	program, err := t.controller.Assemble(source)
	if err != nil {
		return fmt.Errorf("generated program can not be assembled: %w", err)
	}

	var reference *stressOutcome
	referenceName := ""
	for _, name := range t.names {
		got, err := runOnInterpreter(ctx, t.interpreters[name], program)
		if err != nil {
			return fmt.Errorf("interpreter %s failed: %w", name, err)
		}
		if reference == nil {
			reference, referenceName = &got, name
			continue
		}
		if diff := reference.diff(&got); diff != "" {
			return fmt.Errorf("%s and %s disagree: %s", referenceName, name, diff)
		}
	}

	got, err := t.runInSession(ctx, program)
	if err != nil {
		return fmt.Errorf("sandbox failed: %w", err)
	}
	if reference == nil {
		return nil
	}
	if diff := reference.diff(&got); diff != "" {
		return fmt.Errorf("%s and sandbox disagree: %s", referenceName, diff)
	}
	return nil
}

func (t *stressTester) runInSession(ctx context.Context, program *asmbox.Program) (stressOutcome, error) {
	session := t.controller.CreateSession()
	defer t.controller.Close(session.ID())
	if err := session.Load(program); err != nil {
		return stressOutcome{}, err
	}
	if err := session.Run(); err != nil {
		return stressOutcome{}, err
	}
	summary, err := session.Wait(ctx)
	if err != nil {
		return stressOutcome{}, err
	}
	return stressOutcome{
		status:  summary.Status,
		state:   asmbox.State{Registers: summary.Registers, Memory: summary.Memory},
		outputs: summary.Outputs,
		frame:   summary.Frame,
		err:     summary.Err,
	}, nil
}

func runOnInterpreter(ctx context.Context, interpreter asmbox.Interpreter, program *asmbox.Program) (stressOutcome, error) {
	host := &recordingHost{}
	result, err := interpreter.Run(asmbox.Parameters{
		Context:  ctx,
		Program:  program,
		Host:     host,
		MaxSteps: stressStepBudget,
	})
	if err != nil {
		return stressOutcome{}, err
	}
	res := stressOutcome{
		status:  result.Status,
		state:   result.State,
		outputs: host.outputs,
		frame:   host.frame,
	}
	if result.Err != nil {
		res.err = result.Err.Error()
	}
	return res, nil
}

// stressOutcome is the observable result of a program execution.
type stressOutcome struct {
	status  asmbox.Status
	state   asmbox.State
	outputs []asmbox.Output
	// frame is the last frame displayed.
	frame asmbox.Frame
	err   string
}

// diff describes the first difference between two outcomes, the empty
// string if there is none.
func (o *stressOutcome) diff(other *stressOutcome) string {
	if o.status != other.status {
		return fmt.Sprintf("status %v vs %v", o.status, other.status)
	}
	if o.err != other.err {
		return fmt.Sprintf("error %q vs %q", o.err, other.err)
	}
	if o.state.Registers != other.state.Registers {
		return fmt.Sprintf("registers %v vs %v", o.state.Registers, other.state.Registers)
	}
	for i := range o.state.Memory {
		if o.state.Memory[i] != other.state.Memory[i] {
			return fmt.Sprintf("memory[%d] %d vs %d", i, o.state.Memory[i], other.state.Memory[i])
		}
	}
	if !slices.Equal(o.outputs, other.outputs) {
		return fmt.Sprintf("outputs %#v vs %#v", o.outputs, other.outputs)
	}
	if !bytes.Equal(o.frame, other.frame) {
		return "frames differ"
	}
	return ""
}

// recordingHost collects the side-channel output of a program.
type recordingHost struct {
	outputs []asmbox.Output
	frame   asmbox.Frame
}

func (h *recordingHost) Output(output asmbox.Output) {
	h.outputs = append(h.outputs, output)
}

func (h *recordingHost) UpdateScreen(frame asmbox.Frame) {
	h.frame = frame
}

type issue struct {
	index  int
	source string
	err    error
}

type issuesCollector struct {
	issues []issue
	mu     sync.Mutex
}

func (c *issuesCollector) AddIssue(index int, source string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issues = append(c.issues, issue{index: index, source: source, err: err})
}

func (c *issuesCollector) NumIssues() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.issues)
}
