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
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	cliUtils "github.com/Fantom-foundation/asmbox/go/driver/cli"
	"github.com/Fantom-foundation/asmbox/go/sandbox"
	"github.com/urfave/cli/v2"
	"golang.org/x/image/bmp"
)

var RunCmd = cliUtils.AddCommonFlags(cli.Command{
	Action:    doRun,
	Name:      "run",
	Usage:     "Runs a program to completion and prints its output",
	ArgsUsage: "<file>",
	Flags: append([]cli.Flag{
		cliUtils.InterpreterFlag,
		cliUtils.ScreenshotFlag,
	}, cliUtils.SandboxFlags...),
})

// runOutcome summarizes a completed run for printing.
type runOutcome struct {
	status asmbox.Status
	steps  int
	// frame is the last frame displayed by the program.
	frame asmbox.Frame
	err   string
}

func doRun(context *cli.Context) error {
	program, err := loadProgram(context)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Context, os.Interrupt)
	defer stop()

	out := context.App.Writer
	var outcome runOutcome
	if name := cliUtils.InterpreterFlag.Fetch(context); name != "" {
		outcome, err = runInProcess(
			ctx, name, program,
			cliUtils.MaxStepsFlag.Fetch(context),
			cliUtils.TimeoutFlag.Fetch(context),
			out,
		)
	} else {
		var config sandbox.Config
		config, err = cliUtils.FetchSandboxConfig(context)
		if err != nil {
			return err
		}
		outcome, err = runInSandbox(ctx, config, cliUtils.VerboseFlag.Fetch(context), program, out)
	}
	if err != nil {
		return err
	}

	if filename := cliUtils.ScreenshotFlag.Fetch(context); filename != "" {
		if err := writeScreenshot(filename, outcome.frame); err != nil {
			return err
		}
	}

	fmt.Fprintf(context.App.ErrWriter, "\n%v after %d steps\n", outcome.status, outcome.steps)
	if outcome.err != "" {
		return fmt.Errorf("program failed: %s", outcome.err)
	}
	return nil
}

// runInProcess executes the program using the named interpreter of the
// registry. Traces of logging interpreters are written to stderr.
func runInProcess(
	ctx context.Context,
	name string,
	program *asmbox.Program,
	maxSteps int,
	timeout time.Duration,
	out io.Writer,
) (runOutcome, error) {
	interpreter, err := asmbox.NewInterpreter(name, io.Writer(os.Stderr))
	if err != nil {
		return runOutcome{}, err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	host := &printingHost{out: out}
	result, err := interpreter.Run(asmbox.Parameters{
		Context:  ctx,
		Program:  program,
		Host:     host,
		MaxSteps: maxSteps,
	})
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w after %v", sandbox.ErrTimeout, timeout)
	}
	if err != nil {
		return runOutcome{}, err
	}
	if profiling, ok := interpreter.(asmbox.ProfilingInterpreter); ok {
		profiling.DumpProfile()
	}

	res := runOutcome{
		status: result.Status,
		steps:  result.Steps,
		frame:  host.frame,
	}
	if result.Err != nil {
		res.err = result.Err.Error()
	}
	return res, nil
}

// runInSandbox executes the program in a sandbox session, printing outputs
// while they are produced. The session is terminated if ctx is cancelled.
func runInSandbox(
	ctx context.Context,
	config sandbox.Config,
	log *slog.Logger,
	program *asmbox.Program,
	out io.Writer,
) (runOutcome, error) {
	session, err := sandbox.NewSession(config, log)
	if err != nil {
		return runOutcome{}, err
	}
	defer session.Terminate()

	if err := session.Load(program); err != nil {
		return runOutcome{}, err
	}
	if err := session.Run(); err != nil {
		return runOutcome{}, err
	}

	res := runOutcome{}
	events := session.Events()
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case event, ok := <-events:
			if !ok {
				return res, sandbox.ErrTerminated
			}
			switch event.Type {
			case sandbox.EventOutput:
				if event.Value != nil {
					printOutput(out, *event.Value)
				}
			case sandbox.EventRegisters:
				res.steps++
			case sandbox.EventGraphics:
				res.frame = event.Frame
			case sandbox.EventDone:
				res.status = asmbox.Halted
				return res, nil
			case sandbox.EventError:
				res.status = asmbox.Errored
				res.err = event.Error
				return res, nil
			}
		}
	}
}

// printingHost prints outputs as they are produced and retains the last
// displayed frame.
type printingHost struct {
	out   io.Writer
	frame asmbox.Frame
}

func (h *printingHost) Output(output asmbox.Output) {
	printOutput(h.out, output)
}

func (h *printingHost) UpdateScreen(frame asmbox.Frame) {
	h.frame = frame
}

// printOutput writes characters as they are and numbers on a line of their
// own.
func printOutput(w io.Writer, output asmbox.Output) {
	if output.Char {
		fmt.Fprint(w, output)
	} else {
		fmt.Fprintln(w, output)
	}
}

// writeScreenshot stores the frame as BMP if the filename has a .bmp
// extension and as PNG otherwise.
func writeScreenshot(filename string, frame asmbox.Frame) error {
	if len(frame) < asmbox.FrameSize {
		return fmt.Errorf("no frame was displayed, can not write %s", filename)
	}
	img := image.NewRGBA(image.Rect(0, 0, asmbox.ScreenWidth, asmbox.ScreenHeight))
	copy(img.Pix, frame)

	encode := png.Encode
	if strings.EqualFold(filepath.Ext(filename), ".bmp") {
		encode = bmp.Encode
	}

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := encode(file, img); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
