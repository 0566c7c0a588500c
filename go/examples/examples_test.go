// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package examples

import (
	"fmt"
	"io"
	"testing"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
	_ "github.com/Fantom-foundation/asmbox/go/interpreter/avm"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func variants() []string {
	res := maps.Keys(asmbox.GetAllRegisteredInterpreters())
	slices.Sort(res)
	return res
}

func TestExamples_ComputeCorrectResult(t *testing.T) {
	for _, example := range GetAllExamples() {
		for _, variant := range variants() {
			interpreter, err := asmbox.NewInterpreter(variant, io.Discard)
			if err != nil {
				t.Fatalf("failed to create interpreter %s: %v", variant, err)
			}
			for i := 0; i < 10; i++ {
				t.Run(fmt.Sprintf("%s-%s-%d", example.Name, variant, i), func(t *testing.T) {
					want := example.RunReference(i)
					got, err := example.RunOn(interpreter, i)
					if err != nil {
						t.Fatalf("error running example: %v", err)
					}
					if want != got.Result {
						t.Fatalf("incorrect result, wanted %d, got %d", want, got.Result)
					}
				})
			}
		}
	}
}

func TestExamples_StepCountsAgreeAcrossInterpreters(t *testing.T) {
	reference, err := asmbox.NewInterpreter("avm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	for _, example := range GetAllExamples() {
		for _, variant := range variants() {
			interpreter, err := asmbox.NewInterpreter(variant, io.Discard)
			if err != nil {
				t.Fatalf("failed to create interpreter %s: %v", variant, err)
			}
			t.Run(fmt.Sprintf("%s-%s", example.Name, variant), func(t *testing.T) {
				want, err := example.RunOn(reference, 7)
				if err != nil {
					t.Fatalf("failed to run reference: %v", err)
				}
				got, err := example.RunOn(interpreter, 7)
				if err != nil {
					t.Fatalf("error running example: %v", err)
				}
				if want.Steps != got.Steps {
					t.Errorf("incorrect step count, wanted %d, got %d", want.Steps, got.Steps)
				}
			})
		}
	}
}

func TestStackSumExample_HandlesDeepStacks(t *testing.T) {
	example := GetStackSumExample()
	interpreter, err := asmbox.NewInterpreter("avm")
	if err != nil {
		t.Fatalf("failed to create interpreter: %v", err)
	}
	got, err := example.RunOn(interpreter, 200)
	if err != nil {
		t.Fatalf("error running example: %v", err)
	}
	if want := 20100; want != got.Result {
		t.Errorf("incorrect result, wanted %d, got %d", want, got.Result)
	}
}

func TestFloorDiv_RoundsTowardsNegativeInfinity(t *testing.T) {
	tests := map[string]struct {
		a, b, want int
	}{
		"positive": {7, 2, 3},
		"negative": {-7, 2, -4},
		"divisor":  {7, -2, -4},
		"both":     {-7, -2, 3},
		"exact":    {-6, 2, -3},
	}
	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if want, got := test.want, floorDiv(test.a, test.b); want != got {
				t.Errorf("unexpected result, wanted %d, got %d", want, got)
			}
		})
	}
}

func BenchmarkExamples(b *testing.B) {
	for _, example := range GetAllExamples() {
		interpreter, err := asmbox.NewInterpreter("avm")
		if err != nil {
			b.Fatalf("failed to create interpreter: %v", err)
		}
		b.Run(example.Name, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := example.RunOn(interpreter, 20); err != nil {
					b.Fatalf("error running example: %v", err)
				}
			}
		})
	}
}
