// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"sync"
	"testing"
	"time"

	"github.com/Fantom-foundation/asmbox/go/gen"
	"pgregory.net/rand"
)

func TestForEachProgram_ProcessesEveryProgramOnce(t *testing.T) {
	generator := gen.NewProgramGenerator()
	var mutex sync.Mutex
	seen := map[int]string{}
	op := func(index int, source string) bool {
		mutex.Lock()
		defer mutex.Unlock()
		if _, found := seen[index]; found {
			t.Errorf("program %d processed twice", index)
		}
		seen[index] = source
		return true
	}
	noProgress := func(time.Duration, float64, int64) {}

	forEachProgram(generator, op, noProgress, 4, 50, 42)

	if want, got := 50, len(seen); want != got {
		t.Fatalf("unexpected number of processed programs, wanted %d, got %d", want, got)
	}
	for index, source := range seen {
		if want := generator.Generate(rand.New(42 + uint64(index))); want != source {
			t.Errorf("program %d can not be reproduced from its seed", index)
		}
	}
}

func TestForEachProgram_StopsWhenRequested(t *testing.T) {
	generator := gen.NewProgramGenerator()
	var mutex sync.Mutex
	processed := 0
	op := func(int, string) bool {
		mutex.Lock()
		defer mutex.Unlock()
		processed++
		return processed < 5
	}

	forEachProgram(generator, op, func(time.Duration, float64, int64) {}, 2, 1_000_000, 0)

	// Programs already handed to workers may still be processed.
	if processed >= 1000 {
		t.Errorf("processing was not aborted, processed %d programs", processed)
	}
}

func TestForEachProgram_ReportsProgress(t *testing.T) {
	defer func(interval time.Duration) { progressInterval = interval }(progressInterval)
	progressInterval = time.Millisecond

	reported := make(chan int64, 1)
	progress := func(_ time.Duration, _ float64, current int64) {
		select {
		case reported <- current:
		default:
		}
	}
	op := func(int, string) bool {
		time.Sleep(5 * time.Millisecond)
		return true
	}

	forEachProgram(gen.NewProgramGenerator(), op, progress, 1, 10, 0)

	select {
	case <-reported:
	default:
		t.Errorf("no progress was reported")
	}
}
