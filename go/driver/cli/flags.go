// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package cliUtils

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/Fantom-foundation/asmbox/go/sandbox"
	"github.com/urfave/cli/v2"
)

type jobsFlagType struct {
	cli.IntFlag
}

var JobsFlag = &jobsFlagType{
	cli.IntFlag{
		Name:    "jobs",
		Aliases: []string{"j"},
		Usage:   "number of jobs run simultaneously",
		Value:   runtime.NumCPU(),
	},
}

func (f *jobsFlagType) Fetch(context *cli.Context) int {
	res := context.Int(f.Name)
	if res <= 0 {
		return runtime.NumCPU()
	}
	return res
}

type seedFlagType struct {
	cli.Uint64Flag
}

var SeedFlag = &seedFlagType{
	cli.Uint64Flag{
		Name:    "seed",
		Aliases: []string{"s"},
		Usage:   "seed for the random number generator",
	},
}

func (f *seedFlagType) Fetch(context *cli.Context) uint64 {
	return context.Uint64(f.Name)
}

type maxStepsFlagType struct {
	cli.IntFlag
}

var MaxStepsFlag = &maxStepsFlagType{
	cli.IntFlag{
		Name:  "max-steps",
		Usage: "maximum number of instructions executed per run, 0 for unlimited",
	},
}

func (f *maxStepsFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type timeoutFlagType struct {
	cli.DurationFlag
}

var TimeoutFlag = &timeoutFlagType{
	cli.DurationFlag{
		Name:  "timeout",
		Usage: "maximum duration of a run, 0 for unlimited",
	},
}

func (f *timeoutFlagType) Fetch(context *cli.Context) time.Duration {
	return context.Duration(f.Name)
}

type isolationFlagType struct {
	cli.StringFlag
}

var IsolationFlag = &isolationFlagType{
	cli.StringFlag{
		Name:  "isolation",
		Usage: "sandbox isolation mode, one of local or process",
		Value: string(sandbox.IsolationLocal),
	},
}

func (f *isolationFlagType) Fetch(context *cli.Context) (sandbox.Isolation, error) {
	res := sandbox.Isolation(context.String(f.Name))
	switch res {
	case sandbox.IsolationLocal, sandbox.IsolationProcess:
		return res, nil
	}
	return res, fmt.Errorf("%w: %q", sandbox.ErrInvalidIsolation, res)
}

type traceFlagType struct {
	cli.BoolFlag
}

var TraceFlag = &traceFlagType{
	cli.BoolFlag{
		Name:  "trace",
		Usage: "print every executed instruction to stderr",
	},
}

// Fetch returns the writer traces should be written to, nil if tracing is
// disabled.
func (f *traceFlagType) Fetch(context *cli.Context) io.Writer {
	if context.Bool(f.Name) {
		return os.Stderr
	}
	return nil
}

type verboseFlagType struct {
	cli.BoolFlag
}

var VerboseFlag = &verboseFlagType{
	cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "log sandbox life-cycle events to stderr",
	},
}

// Fetch returns the logger for sandbox events, nil if logging is disabled.
func (f *verboseFlagType) Fetch(context *cli.Context) *slog.Logger {
	if !context.Bool(f.Name) {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// FetchSandboxConfig collects the sandbox configuration from the sandbox
// related flags of a command.
func FetchSandboxConfig(context *cli.Context) (sandbox.Config, error) {
	isolation, err := IsolationFlag.Fetch(context)
	if err != nil {
		return sandbox.Config{}, err
	}
	return sandbox.Config{
		Isolation: isolation,
		MaxSteps:  MaxStepsFlag.Fetch(context),
		Timeout:   TimeoutFlag.Fetch(context),
		Trace:     TraceFlag.Fetch(context),
	}, nil
}

// SandboxFlags lists the flags read by FetchSandboxConfig.
var SandboxFlags = []cli.Flag{
	IsolationFlag,
	MaxStepsFlag,
	TimeoutFlag,
	TraceFlag,
	VerboseFlag,
}

type interpreterFlagType struct {
	cli.StringFlag
}

var InterpreterFlag = &interpreterFlagType{
	cli.StringFlag{
		Name:  "interpreter",
		Usage: "run in-process using the named interpreter instead of a sandbox",
	},
}

func (f *interpreterFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type screenshotFlagType struct {
	cli.StringFlag
}

var ScreenshotFlag = &screenshotFlagType{
	cli.StringFlag{
		Name:      "screenshot",
		Usage:     "store the last displayed frame as PNG in the provided filename",
		TakesFile: true,
	},
}

func (f *screenshotFlagType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

type countFlagType struct {
	cli.IntFlag
}

var CountFlag = &countFlagType{
	cli.IntFlag{
		Name:    "count",
		Aliases: []string{"n"},
		Usage:   "number of programs to process",
		Value:   1000,
	},
}

func (f *countFlagType) Fetch(context *cli.Context) int {
	return context.Int(f.Name)
}

type cpuProfileType struct {
	cli.StringFlag
}

var CpuProfileFlag = &cpuProfileType{
	cli.StringFlag{
		Name:      "cpuprofile",
		Usage:     "store CPU profile in the provided filename",
		TakesFile: true,
	},
}

func (f *cpuProfileType) Fetch(context *cli.Context) string {
	return context.String(f.Name)
}

var commonFlags = []cli.Flag{
	CpuProfileFlag,
}

func AddCommonFlags(command cli.Command) cli.Command {
	command.Flags = append(command.Flags, commonFlags...)

	action := command.Action
	command.Action = func(ctx *cli.Context) (err error) {

		if cpuprofileFilename := CpuProfileFlag.Fetch(ctx); cpuprofileFilename != "" {
			f, err := os.Create(cpuprofileFilename)
			if err != nil {
				return fmt.Errorf("could not create CPU profile: %w", err)
			}
			if err := pprof.StartCPUProfile(f); err != nil {
				return fmt.Errorf("could not start CPU profile: %w", err)
			}
			defer pprof.StopCPUProfile()
		}

		return action(ctx)
	}
	return command
}
