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
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"golang.org/x/exp/slices"
)

func mustAssemble(t *testing.T, source string) *asmbox.Program {
	t.Helper()
	program, err := asm.Assemble(source)
	if err != nil {
		t.Fatalf("failed to assemble program: %v", err)
	}
	return program
}

func serve(t *testing.T, config Config, requests ...Request) []Event {
	t.Helper()
	in := make(chan Request, len(requests))
	for _, request := range requests {
		in <- request
	}
	close(in)
	var events []Event
	err := Serve(context.Background(), config, in, func(event Event) error {
		events = append(events, event)
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return events
}

func typesOf(events []Event) []EventType {
	res := make([]EventType, 0, len(events))
	for _, event := range events {
		res = append(res, event.Type)
	}
	return res
}

const (
	R = EventRegisters
	M = EventMemory
	O = EventOutput
	G = EventGraphics
	D = EventDone
	E = EventError
	S = EventStepComplete
)

func TestServe_RunReportsStateAfterEveryStep(t *testing.T) {
	program := mustAssemble(t, "MOV R0,5\nMOV R1,3\nADD R0,R1\nOUT R0\nHLT")
	events := serve(t, Config{}, Request{Type: RequestRun, Program: program})

	want := []EventType{R, M, R, M, R, M, O, R, M, R, M, D}
	if got := typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := (asmbox.Output{Value: 8}), *events[6].Value; want != got {
		t.Errorf("unexpected output, wanted %v, got %v", want, got)
	}
	if want, got := asmbox.Word(8), events[10].Registers[asmbox.R0]; want != got {
		t.Errorf("unexpected final R0, wanted %d, got %d", want, got)
	}
}

func TestServe_RunStartsFromProvidedState(t *testing.T) {
	program := mustAssemble(t, "ADD R0, [3]")
	registers := asmbox.Registers{}
	registers[asmbox.R0] = 4
	registers[asmbox.SP] = 100
	memory := asmbox.Memory{}
	memory[3] = 5

	events := serve(t, Config{}, Request{Type: RequestRun, Program: program, Registers: &registers, Memory: &memory})
	if want, got := []EventType{R, M, D}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := asmbox.Word(9), events[0].Registers[asmbox.R0]; want != got {
		t.Errorf("unexpected R0, wanted %d, got %d", want, got)
	}
	if want, got := asmbox.Word(100), events[0].Registers[asmbox.SP]; want != got {
		t.Errorf("unexpected SP, wanted %d, got %d", want, got)
	}
}

func TestServe_RuntimeErrorsAreReportedAsErrorEvents(t *testing.T) {
	program := mustAssemble(t, "MOV R0, 1\nDIV R0, 0")
	events := serve(t, Config{}, Request{Type: RequestRun, Program: program})

	if want, got := []EventType{R, M, R, M, E}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := "division by zero (line 2: DIV R0, 0)", events[4].Error; want != got {
		t.Errorf("unexpected error message, wanted %q, got %q", want, got)
	}
	if want, got := asmbox.Word(1), events[2].Registers[asmbox.R0]; want != got {
		t.Errorf("failing division modified R0, got %d", got)
	}
}

func TestServe_GraphicsAreReported(t *testing.T) {
	program := mustAssemble(t, "SETPIXEL 10,10,16711680\nUPDATESCREEN")
	events := serve(t, Config{}, Request{Type: RequestRun, Program: program})

	if want, got := []EventType{R, M, G, R, M, D}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	r, g, b, a := events[2].Frame.Pixel(10, 10)
	if r != 255 || g != 0 || b != 0 || a != 255 {
		t.Errorf("unexpected pixel, wanted (255,0,0,255), got (%d,%d,%d,%d)", r, g, b, a)
	}
}

func TestServe_StepsAreAcknowledged(t *testing.T) {
	program := mustAssemble(t, "MOV R0, 1\nOUT R0\nHLT")
	events := serve(t, Config{},
		Request{Type: RequestStep, Program: program},
		Request{Type: RequestStep},
		Request{Type: RequestStep},
	)

	if want, got := []EventType{S, O, S, D, S}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := asmbox.Word(1), events[0].Registers[asmbox.IP]; want != got {
		t.Errorf("unexpected IP after first step, wanted %d, got %d", want, got)
	}
	if events[0].Memory == nil {
		t.Errorf("step acknowledgement does not contain memory")
	}
}

func TestServe_StateIsPersistedAcrossRequests(t *testing.T) {
	program := mustAssemble(t, "MOV R0, 1\nADD R0, 1\nADD R0, 1")
	events := serve(t, Config{},
		Request{Type: RequestStep, Program: program},
		Request{Type: RequestRun},
	)

	if want, got := []EventType{S, R, M, R, M, D}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := asmbox.Word(3), events[3].Registers[asmbox.R0]; want != got {
		t.Errorf("unexpected R0, wanted %d, got %d", want, got)
	}
}

func TestServe_ProgramReplacesMachine(t *testing.T) {
	first := mustAssemble(t, "MOV R0, 1\nMOV R1, 1")
	second := mustAssemble(t, "MOV R2, 1")
	events := serve(t, Config{},
		Request{Type: RequestStep, Program: first},
		Request{Type: RequestStep, Program: second},
	)
	last := events[len(events)-1]
	if want, got := EventStepComplete, last.Type; want != got {
		t.Fatalf("unexpected last event, wanted %v, got %v", want, got)
	}
	if regs := *last.Registers; regs[asmbox.R0] != 0 || regs[asmbox.R2] != 1 {
		t.Errorf("machine was not replaced, got %v", regs)
	}
}

func TestServe_RequestsWithoutProgramAreRejected(t *testing.T) {
	events := serve(t, Config{}, Request{Type: RequestRun}, Request{Type: RequestStep})
	if want, got := []EventType{E, E, S}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if want, got := ErrNoProgram.Error(), events[0].Error; want != got {
		t.Errorf("unexpected error, wanted %q, got %q", want, got)
	}
}

func TestServe_UnknownRequestsAreRejected(t *testing.T) {
	events := serve(t, Config{}, Request{Type: "jump"})
	if want, got := []EventType{E}, typesOf(events); !slices.Equal(want, got) {
		t.Fatalf("unexpected events, wanted %v, got %v", want, got)
	}
	if !strings.Contains(events[0].Error, ErrUnknownRequest.Error()) {
		t.Errorf("unexpected error: %s", events[0].Error)
	}
}

// serveLoop runs an infinite loop and returns the number of reported steps
// and the last event.
func serveLoop(ctx context.Context, config Config, onEvent func(count int)) (int, Event, error) {
	program, err := asm.Assemble("loop:\nMOV R0,1\nJMP loop")
	if err != nil {
		return 0, Event{}, err
	}
	in := make(chan Request, 1)
	in <- Request{Type: RequestRun, Program: program}
	close(in)

	steps := 0
	last := Event{}
	err = Serve(ctx, config, in, func(event Event) error {
		if event.Type == EventRegisters {
			steps++
		}
		last = event
		if onEvent != nil {
			onEvent(steps)
		}
		return nil
	})
	return steps, last, err
}

func TestServe_StepBudgetEndsRun(t *testing.T) {
	steps, last, err := serveLoop(context.Background(), Config{MaxSteps: 10}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := 10, steps; want != got {
		t.Errorf("unexpected number of steps, wanted %d, got %d", want, got)
	}
	if want, got := EventError, last.Type; want != got {
		t.Fatalf("unexpected last event, wanted %v, got %v", want, got)
	}
	if !strings.Contains(last.Error, "step budget exhausted") {
		t.Errorf("unexpected error: %s", last.Error)
	}
}

func TestServe_TimeoutEndsRun(t *testing.T) {
	_, last, err := serveLoop(context.Background(), Config{Timeout: 20 * time.Millisecond}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := EventError, last.Type; want != got {
		t.Fatalf("unexpected last event, wanted %v, got %v", want, got)
	}
	if !strings.Contains(last.Error, ErrTimeout.Error()) {
		t.Errorf("unexpected error: %s", last.Error)
	}
}

func TestServe_CancellationAbortsInfiniteLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	steps, last, err := serveLoop(ctx, Config{}, func(count int) {
		if count == 100 {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("unexpected error, wanted %v, got %v", context.Canceled, err)
	}
	if want, got := 100, steps; want != got {
		t.Errorf("unexpected number of steps, wanted %d, got %d", want, got)
	}
	if last.Type == EventDone {
		t.Errorf("infinite loop reported completion")
	}
}

func TestServe_EmitFailuresStopServing(t *testing.T) {
	in := make(chan Request, 2)
	in <- Request{Type: RequestRun, Program: mustAssemble(t, "loop:\nJMP loop")}
	in <- Request{Type: RequestRun}
	close(in)

	injected := errors.New("injected")
	calls := 0
	err := Serve(context.Background(), Config{}, in, func(Event) error {
		calls++
		return injected
	})
	if !errors.Is(err, injected) {
		t.Errorf("unexpected error, wanted %v, got %v", injected, err)
	}
	if want, got := 1, calls; want != got {
		t.Errorf("unexpected number of emitted events, wanted %d, got %d", want, got)
	}
}
