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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
)

// processSandbox runs the engine loop in a child process. Requests and
// events are exchanged as JSON lines over the child's stdin and stdout.
// Closing the sandbox kills the process.
type processSandbox struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	events chan Event
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mutex   sync.Mutex // < guards the encoder
	encoder *json.Encoder
}

func newProcessSandbox(config Config) (*processSandbox, error) {
	command, err := config.command()
	if err != nil {
		return nil, fmt.Errorf("failed to locate sandbox executable: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = append(append(os.Environ(), config.Env...), config.environment()...)
	cmd.Stderr = config.Trace

	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start sandbox process: %w", err)
	}

	res := &processSandbox{
		cmd:     cmd,
		stdin:   stdin,
		events:  make(chan Event, config.eventBuffer()),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		encoder: json.NewEncoder(stdin),
	}
	go res.read(stdout)
	return res, nil
}

// read forwards the events of the process until its output ends. Failures of
// the process are reported as a final error event unless the sandbox was
// closed.
func (s *processSandbox) read(stdout io.Reader) {
	defer close(s.done)
	defer close(s.events)

	forward := func(event Event) bool {
		select {
		case s.events <- event:
			return true
		case <-s.ctx.Done():
			return false
		}
	}

	decoder := newEventDecoder(stdout)
	var failure error
	for {
		event, err := decoder.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				failure = err
			}
			break
		}
		if !forward(event) {
			break
		}
	}

	// Wait must not be called before all output was read.
	if s.ctx.Err() == nil {
		_, _ = io.Copy(io.Discard, stdout)
	}
	if err := s.cmd.Wait(); err != nil && failure == nil {
		failure = err
	}
	if failure != nil && s.ctx.Err() == nil {
		forward(errorEvent(fmt.Errorf("%w: %v", ErrSandboxFailure, failure)))
	}
}

func (s *processSandbox) Send(request Request) error {
	select {
	case <-s.done:
		return ErrTerminated
	default:
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if err := s.encoder.Encode(request); err != nil {
		return fmt.Errorf("%w: %v", ErrTerminated, err)
	}
	return nil
}

func (s *processSandbox) Events() <-chan Event {
	return s.events
}

func (s *processSandbox) Close() error {
	// Killing the process unblocks pending writes to its input.
	s.cancel()
	<-s.done
	if err := s.stdin.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
