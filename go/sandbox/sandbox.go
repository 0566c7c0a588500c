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

import "fmt"

//go:generate mockgen -source sandbox.go -destination sandbox_mock.go -package sandbox

// Sandbox is an isolated execution context for programs. A sandbox owns a
// single machine which is driven by requests. Its events are delivered in
// the order they were produced. Sandboxes do not share any state.
type Sandbox interface {
	// Send enqueues a request. It fails with ErrTerminated if the sandbox
	// was closed or stopped working.
	Send(Request) error
	// Events provides the stream of events produced by the sandbox. The
	// channel is closed when the sandbox stops.
	Events() <-chan Event
	// Close terminates the sandbox, aborting any in-flight run and
	// discarding queued requests and events.
	Close() error
}

// New starts a sandbox of the isolation mode selected by the configuration.
func New(config Config) (Sandbox, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	switch config.Isolation {
	case "", IsolationLocal:
		return newLocalSandbox(config), nil
	case IsolationProcess:
		return newProcessSandbox(config)
	}
	return nil, fmt.Errorf("%w: %q", ErrInvalidIsolation, config.Isolation)
}
