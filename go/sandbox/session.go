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
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

type SessionID uint64

// Session is the host's handle on a program executed in a sandbox. The
// sandbox is started lazily by the first request and replaced on Reset.
// Sessions are safe for concurrent use.
type Session struct {
	id     SessionID
	config Config
	log    *slog.Logger
	create func(Config) (Sandbox, error)

	// sending serializes requests. It is never held by Reset or Terminate,
	// which must be able to abort a request blocked on a busy sandbox.
	sending sync.Mutex

	mutex      sync.Mutex
	sandbox    Sandbox
	program    *asmbox.Program
	reload     bool        // < the program is sent with the next request
	last       RequestType // < type of the last request sent
	terminated bool
}

// NewSession creates a session using the given configuration. If log is
// nil, no log is written.
func NewSession(config Config, log *slog.Logger) (*Session, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	return newSession(0, config, log, New), nil
}

func newSession(id SessionID, config Config, log *slog.Logger, create func(Config) (Sandbox, error)) *Session {
	if log == nil {
		log = discardLogger()
	}
	return &Session{
		id:     id,
		config: config,
		log:    log.With("session", id),
		create: create,
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func (s *Session) ID() SessionID {
	return s.id
}

// Load sets the program to be executed. The next request starts the
// program from the initial machine state.
func (s *Session) Load(program *asmbox.Program) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	s.program = program
	s.reload = true
	s.log.Debug("program loaded", "instructions", program.Len())
	return nil
}

// Run requests the loaded program to be executed until it stops.
func (s *Session) Run() error {
	return s.send(RequestRun)
}

// Step requests a single instruction of the loaded program to be executed.
func (s *Session) Step() error {
	return s.send(RequestStep)
}

func (s *Session) send(kind RequestType) error {
	s.sending.Lock()
	defer s.sending.Unlock()

	sandbox, request, err := s.prepare(kind)
	if err != nil {
		return err
	}

	// The sandbox may not accept requests while it is running a program, so
	// the session must not be locked while sending.
	if err := sandbox.Send(request); err != nil {
		s.log.Warn("failed to send request", "request", request, "error", err)
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.sandbox == sandbox {
		s.reload = false
		s.last = kind
	}
	return nil
}

// prepare starts the sandbox if needed and creates the request of the given
// type, carrying the program if it needs to be (re)loaded.
func (s *Session) prepare(kind RequestType) (Sandbox, Request, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.terminated {
		return nil, Request{}, ErrTerminated
	}
	if s.program == nil {
		return nil, Request{}, ErrNoProgram
	}
	if s.sandbox == nil {
		sandbox, err := s.create(s.config)
		if err != nil {
			s.log.Error("failed to start sandbox", "isolation", s.config.Isolation, "error", err)
			return nil, Request{}, fmt.Errorf("%w: %v", ErrSandboxFailure, err)
		}
		s.log.Debug("sandbox started", "isolation", s.config.Isolation)
		s.sandbox = sandbox
		s.reload = true
	}

	request := Request{Type: kind}
	if s.reload {
		state := asmbox.NewState()
		request.Program = s.program
		request.Registers = &state.Registers
		request.Memory = &state.Memory
	}
	return s.sandbox, request, nil
}

// Events provides the events of the current sandbox. The channel is closed
// when the sandbox is reset or terminated. Without a sandbox, the returned
// channel is closed.
func (s *Session) Events() <-chan Event {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.sandbox == nil {
		res := make(chan Event)
		close(res)
		return res
	}
	return s.sandbox.Events()
}

// Reset tears down the sandbox, discarding its state and all queued events.
// The next request starts the loaded program from the initial state in a
// fresh sandbox.
func (s *Session) Reset() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	s.log.Debug("resetting session")
	return s.closeSandbox()
}

// Terminate tears down the sandbox, aborting any in-flight run. The session
// can not be used afterwards.
func (s *Session) Terminate() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.terminated {
		return nil
	}
	s.terminated = true
	s.log.Debug("terminating session")
	return s.closeSandbox()
}

func (s *Session) closeSandbox() error {
	if s.sandbox == nil {
		return nil
	}
	err := s.sandbox.Close()
	s.sandbox = nil
	s.reload = true
	if err != nil {
		s.log.Warn("failed to close sandbox", "error", err)
	}
	return err
}

// Wait consumes the events of the current sandbox until the last request
// sent is acknowledged, and summarizes them.
func (s *Session) Wait(ctx context.Context) (Summary, error) {
	s.mutex.Lock()
	last := s.last
	s.mutex.Unlock()

	events := s.Events()
	res := Summary{}
	for {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		case event, ok := <-events:
			if !ok {
				return res, ErrTerminated
			}
			res.add(event)
			if event.Acknowledges(last) {
				return res, nil
			}
		}
	}
}

// Summary aggregates the events produced in response to a request.
type Summary struct {
	// Status is Halted after a done event, Errored after an error event and
	// Running otherwise.
	Status    asmbox.Status
	Outputs   []asmbox.Output
	Registers asmbox.Registers
	Memory    asmbox.Memory
	// Frame is the frame of the last graphics event, nil if there was none.
	Frame asmbox.Frame
	// Steps counts the reported machine states.
	Steps int
	Err   string
}

func (s *Summary) add(event Event) {
	switch event.Type {
	case EventOutput:
		if event.Value != nil {
			s.Outputs = append(s.Outputs, *event.Value)
		}
	case EventRegisters:
		if event.Registers != nil {
			s.Registers = *event.Registers
			s.Steps++
		}
	case EventMemory:
		if event.Memory != nil {
			s.Memory = *event.Memory
		}
	case EventGraphics:
		s.Frame = event.Frame
	case EventStepComplete:
		if event.Registers != nil {
			s.Registers = *event.Registers
		}
		if event.Memory != nil {
			s.Memory = *event.Memory
		}
		s.Steps++
	case EventDone:
		s.Status = asmbox.Halted
	case EventError:
		s.Status = asmbox.Errored
		s.Err = event.Error
	}
}
