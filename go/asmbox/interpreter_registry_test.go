// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package asmbox

import (
	"testing"

	"go.uber.org/mock/gomock"
)

func TestInterpreterRegistry_NameCollisionsAreDetected(t *testing.T) {
	const name = "something-just-for-this-test"
	factory := func(any) (Interpreter, error) {
		return nil, nil
	}
	if err := RegisterInterpreterFactory(name, factory); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := RegisterInterpreterFactory(name, factory); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInterpreterRegistry_NilFactoriesAreRejected(t *testing.T) {
	const name = "something"
	if err := RegisterInterpreterFactory(name, nil); err == nil {
		t.Fatalf("expected error, got nil")
	}
}

func TestInterpreterRegistry_LookupIsCaseInsensitive(t *testing.T) {
	ctrl := gomock.NewController(t)
	interpreter := NewMockInterpreter(ctrl)

	const name = "Mixed-Case-Interpreter"
	err := RegisterInterpreterFactory(name, func(any) (Interpreter, error) {
		return interpreter, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := NewInterpreter("mixed-case-INTERPRETER")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != interpreter {
		t.Errorf("unexpected interpreter, wanted %v, got %v", interpreter, got)
	}

	if _, found := GetAllRegisteredInterpreters()["mixed-case-interpreter"]; !found {
		t.Errorf("registered interpreter not listed")
	}
}

func TestInterpreterRegistry_ConfigurationIsForwardedToFactory(t *testing.T) {
	const name = "configurable-interpreter"
	var seen any
	err := RegisterInterpreterFactory(name, func(config any) (Interpreter, error) {
		seen = config
		return nil, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := NewInterpreter(name, 42); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want, got := any(42), seen; want != got {
		t.Errorf("unexpected configuration, wanted %v, got %v", want, got)
	}

	if _, err := NewInterpreter(name, 1, 2); err == nil {
		t.Errorf("expected error for too many configuration arguments")
	}
}

func TestInterpreterRegistry_UnknownInterpreterProducesError(t *testing.T) {
	if _, err := NewInterpreter("does-not-exist"); err == nil {
		t.Errorf("expected error, got nil")
	}
}
