// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package sandbox

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

const (
	ErrNoProgram        = asmbox.ConstError("no program loaded")
	ErrTimeout          = asmbox.ConstError("run timed out")
	ErrUnknownRequest   = asmbox.ConstError("unknown request")
	ErrTerminated       = asmbox.ConstError("sandbox terminated")
	ErrSandboxFailure   = asmbox.ConstError("sandbox failure")
	ErrUnknownSession   = asmbox.ConstError("unknown session")
	ErrInvalidIsolation = asmbox.ConstError("invalid isolation mode")
)

// Isolation selects the primitive used to separate executed programs from
// the host.
type Isolation string

const (
	// IsolationLocal runs programs on a dedicated goroutine of the host
	// process. Programs can not access the host beyond the message channel,
	// yet they share the host's resources.
	IsolationLocal Isolation = "local"
	// IsolationProcess runs programs in a child process.
	IsolationProcess Isolation = "process"
)

// Environment variables used to pass the configuration to sandbox processes.
const (
	EnvMaxSteps = "ASMBOX_MAX_STEPS"
	EnvTimeout  = "ASMBOX_TIMEOUT"
	EnvTrace    = "ASMBOX_TRACE"
)

const defaultEventBuffer = 1024

type Config struct {
	// Isolation defaults to IsolationLocal.
	Isolation Isolation
	// MaxSteps limits the number of instructions executed by a single run
	// request. Zero means unlimited.
	MaxSteps int
	// Timeout limits the duration of a single run request. Zero means
	// unlimited.
	Timeout time.Duration
	// Trace, if set, receives a trace line for every executed instruction.
	Trace io.Writer
	// Command is the command line starting a sandbox process. It defaults
	// to the worker command of the current executable.
	Command []string
	// Env lists additional environment variables for sandbox processes.
	Env []string
	// EventBuffer is the capacity of the event queue of a sandbox.
	EventBuffer int
	// CacheSize is the number of programs retained by Controller.Assemble.
	// Zero selects a default size, negative values disable the cache.
	CacheSize int
}

func (c Config) validate() error {
	switch c.Isolation {
	case "", IsolationLocal, IsolationProcess:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidIsolation, c.Isolation)
	}
	if c.MaxSteps < 0 {
		return fmt.Errorf("invalid step limit: %d", c.MaxSteps)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %v", c.Timeout)
	}
	return nil
}

func (c Config) eventBuffer() int {
	if c.EventBuffer <= 0 {
		return defaultEventBuffer
	}
	return c.EventBuffer
}

func (c Config) command() ([]string, error) {
	if len(c.Command) > 0 {
		return c.Command, nil
	}
	executable, err := os.Executable()
	if err != nil {
		return nil, err
	}
	return []string{executable, "worker"}, nil
}

// environment encodes the execution limits of the configuration as
// environment variables, to be decoded by ConfigFromEnv.
func (c Config) environment() []string {
	res := []string{
		EnvMaxSteps + "=" + strconv.Itoa(c.MaxSteps),
		EnvTimeout + "=" + c.Timeout.String(),
	}
	if c.Trace != nil {
		res = append(res, EnvTrace+"=1")
	}
	return res
}

// ConfigFromEnv restores the configuration of a sandbox process from its
// environment. Traces are written to stderr.
func ConfigFromEnv(lookup func(string) (string, bool)) (Config, error) {
	res := Config{}
	if value, found := lookup(EnvMaxSteps); found && value != "" {
		steps, err := strconv.Atoi(value)
		if err != nil {
			return res, fmt.Errorf("invalid %s: %w", EnvMaxSteps, err)
		}
		res.MaxSteps = steps
	}
	if value, found := lookup(EnvTimeout); found && value != "" {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return res, fmt.Errorf("invalid %s: %w", EnvTimeout, err)
		}
		res.Timeout = timeout
	}
	if value, found := lookup(EnvTrace); found && value == "1" {
		res.Trace = os.Stderr
	}
	return res, res.validate()
}
