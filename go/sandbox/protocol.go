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

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// This file defines the messages exchanged between a host and a sandbox.
// Messages are plain structs with JSON tags. Local sandboxes pass them
// through channels, process sandboxes encode them as JSON lines.

type RequestType string

const (
	// RequestRun executes the program until it halts or fails.
	RequestRun RequestType = "run"
	// RequestStep executes a single instruction.
	RequestStep RequestType = "step"
)

// Request is a message sent from a host to a sandbox. A request carrying a
// program replaces the machine of the sandbox by a new one executing the
// given program, starting from the given registers and memory. Missing
// registers or memory are initialized as by asmbox.NewState. A request
// without a program continues the machine created by an earlier request.
type Request struct {
	Type      RequestType       `json:"type"`
	Program   *asmbox.Program   `json:"program,omitempty"`
	Registers *asmbox.Registers `json:"registers,omitempty"`
	Memory    *asmbox.Memory    `json:"memory,omitempty"`
}

func (r Request) String() string {
	if r.Program != nil {
		return fmt.Sprintf("%s(%d instructions)", r.Type, r.Program.Len())
	}
	return string(r.Type)
}

type EventType string

const (
	EventOutput       EventType = "output"
	EventRegisters    EventType = "registers"
	EventMemory       EventType = "memory"
	EventGraphics     EventType = "graphics"
	EventError        EventType = "error"
	EventDone         EventType = "done"
	EventStepComplete EventType = "step-complete"
)

// Event is a message sent from a sandbox to its host. Only the fields
// relevant for the type of the event are set.
type Event struct {
	Type      EventType         `json:"type"`
	Value     *asmbox.Output    `json:"value,omitempty"`
	Registers *asmbox.Registers `json:"registers,omitempty"`
	Memory    *asmbox.Memory    `json:"memory,omitempty"`
	Frame     asmbox.Frame      `json:"data,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Acknowledges reports whether the event is the last event emitted in
// response to a request of the given type. Runs end with a done or an error
// event, steps always end with a step-complete event.
func (e Event) Acknowledges(request RequestType) bool {
	if request == RequestStep {
		return e.Type == EventStepComplete
	}
	return e.Type == EventDone || e.Type == EventError
}

func (e Event) String() string {
	switch e.Type {
	case EventOutput:
		if e.Value != nil {
			return fmt.Sprintf("output(%v)", e.Value)
		}
	case EventRegisters:
		if e.Registers != nil {
			return fmt.Sprintf("registers(%v)", e.Registers)
		}
	case EventError:
		return fmt.Sprintf("error(%s)", e.Error)
	case EventGraphics:
		return fmt.Sprintf("graphics(%d bytes)", len(e.Frame))
	}
	return string(e.Type)
}

func outputEvent(output asmbox.Output) Event {
	return Event{Type: EventOutput, Value: &output}
}

func registersEvent(registers asmbox.Registers) Event {
	return Event{Type: EventRegisters, Registers: &registers}
}

func memoryEvent(memory asmbox.Memory) Event {
	return Event{Type: EventMemory, Memory: &memory}
}

func graphicsEvent(frame asmbox.Frame) Event {
	return Event{Type: EventGraphics, Frame: frame}
}

func errorEvent(err error) Event {
	return Event{Type: EventError, Error: err.Error()}
}

func stepCompleteEvent(state asmbox.State) Event {
	return Event{Type: EventStepComplete, Registers: &state.Registers, Memory: &state.Memory}
}
