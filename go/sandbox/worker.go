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

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"github.com/Fantom-foundation/asmbox/go/interpreter/avm"
)

// Serve runs the engine loop of a sandbox. Requests are processed one after
// another; every event produced while processing a request is passed to
// emit before the next request is read. The machine created by a request
// carrying a program persists across requests.
//
// Serve returns nil once the request channel is closed. It returns the
// context's error if the context is cancelled, which aborts a running
// program between two instructions, and the error of emit if an event could
// not be delivered.
func Serve(ctx context.Context, config Config, requests <-chan Request, emit func(Event) error) error {
	w := &worker{config: config, emit: emit}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case request, ok := <-requests:
			if !ok {
				return nil
			}
			if err := w.handle(ctx, request); err != nil {
				return err
			}
		}
	}
}

type worker struct {
	config  Config
	emit    func(Event) error
	machine *avm.Machine
	// emitErr is the first error reported by emit. Once set, no further
	// events are delivered.
	emitErr error
}

func (w *worker) Output(output asmbox.Output) {
	w.send(outputEvent(output))
}

func (w *worker) UpdateScreen(frame asmbox.Frame) {
	w.send(graphicsEvent(frame))
}

func (w *worker) send(event Event) {
	if w.emitErr == nil {
		w.emitErr = w.emit(event)
	}
}

func (w *worker) handle(ctx context.Context, request Request) error {
	if request.Program != nil {
		w.load(request)
	}
	switch request.Type {
	case RequestRun:
		if err := w.run(ctx); err != nil {
			return err
		}
	case RequestStep:
		w.step()
	default:
		w.send(errorEvent(fmt.Errorf("%w: %q", ErrUnknownRequest, request.Type)))
	}
	return w.emitErr
}

func (w *worker) load(request Request) {
	state := asmbox.NewState()
	if request.Registers != nil {
		state.Registers = *request.Registers
	}
	if request.Memory != nil {
		state.Memory = *request.Memory
	}
	w.machine = avm.NewMachine(request.Program, w)
	w.machine.SetState(state)
}

func (w *worker) trace() {
	if w.config.Trace != nil {
		// Tracing is best effort, failing traces do not affect the run.
		_ = w.machine.WriteTrace(w.config.Trace)
	}
}

// run executes the loaded program until it stops, the step budget is
// exhausted or the timeout expires. Registers and memory are reported after
// every instruction.
func (w *worker) run(ctx context.Context) error {
	if w.machine == nil {
		w.send(errorEvent(ErrNoProgram))
		return nil
	}

	runCtx := ctx
	if w.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, w.config.Timeout)
		defer cancel()
	}

	steps := 0
	for w.machine.Status() == asmbox.Running && w.emitErr == nil {
		select {
		case <-runCtx.Done():
			if err := ctx.Err(); err != nil {
				return err
			}
			w.send(errorEvent(fmt.Errorf("%w after %v", ErrTimeout, w.config.Timeout)))
			return nil
		default:
		}
		if w.config.MaxSteps > 0 && steps >= w.config.MaxSteps {
			w.send(errorEvent(fmt.Errorf("%w after %d steps", avm.ErrStepBudgetExhausted, steps)))
			return nil
		}

		w.trace()
		w.machine.Step()
		steps++
		w.send(registersEvent(w.machine.Registers()))
		w.send(memoryEvent(w.machine.Memory()))
	}
	w.finish()
	return nil
}

// step executes a single instruction and acknowledges it with the new
// machine state.
func (w *worker) step() {
	if w.machine == nil {
		w.send(errorEvent(ErrNoProgram))
		w.send(stepCompleteEvent(asmbox.NewState()))
		return
	}
	w.trace()
	w.machine.Step()
	w.finish()
	w.send(stepCompleteEvent(w.machine.State()))
}

// finish reports the end of the program, if it was reached.
func (w *worker) finish() {
	switch w.machine.Status() {
	case asmbox.Halted:
		w.send(Event{Type: EventDone})
	case asmbox.Errored:
		w.send(errorEvent(w.machine.Err()))
	}
}
