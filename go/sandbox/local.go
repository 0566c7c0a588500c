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
)

// localSandbox runs the engine loop on a dedicated goroutine. Cancelling
// its context aborts a running program before the next instruction.
type localSandbox struct {
	requests chan Request
	events   chan Event
	cancel   context.CancelFunc
	done     chan struct{}
}

func newLocalSandbox(config Config) *localSandbox {
	ctx, cancel := context.WithCancel(context.Background())
	res := &localSandbox{
		requests: make(chan Request, 16),
		events:   make(chan Event, config.eventBuffer()),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go res.serve(ctx, config)
	return res
}

func (s *localSandbox) serve(ctx context.Context, config Config) {
	defer close(s.done)
	defer close(s.events)
	emit := func(event Event) error {
		select {
		case s.events <- event:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() {
		// A panic must not take down the host process.
		if r := recover(); r != nil {
			_ = emit(errorEvent(fmt.Errorf("%w: %v", ErrSandboxFailure, r)))
		}
	}()
	_ = Serve(ctx, config, s.requests, emit)
}

func (s *localSandbox) Send(request Request) error {
	select {
	case <-s.done:
		return ErrTerminated
	default:
	}
	select {
	case s.requests <- request:
		return nil
	case <-s.done:
		return ErrTerminated
	}
}

func (s *localSandbox) Events() <-chan Event {
	return s.events
}

func (s *localSandbox) Close() error {
	s.cancel()
	<-s.done
	return nil
}
