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
	"sync/atomic"
	"time"

	"github.com/Fantom-foundation/asmbox/go/gen"
	"pgregory.net/rand"
)

// progressInterval is the period in which progress is reported.
var progressInterval = 5 * time.Second

// forEachProgram generates count random programs and processes them on
// numJobs parallel goroutines. Program i is generated from seed+i, so every
// program can be reproduced individually. Processing stops early if
// opFunction returns false.
func forEachProgram(
	generator *gen.ProgramGenerator,
	opFunction func(index int, source string) bool,
	printProgress func(relativeTime time.Duration, rate float64, current int64),
	numJobs int,
	count int,
	seed uint64,
) {
	// This goroutine feeds the indices of the programs to be generated into a
	// channel consumed by a team of workers generating and processing the
	// programs. Additionally, a goroutine periodically reporting progress
	// information is started. Consumers are started before the producer.

	var counter atomic.Int64
	var abort atomic.Bool

	done := make(chan bool)
	printerDone := make(chan bool)
	go func() {
		defer close(printerDone)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()
		startTime := time.Now()
		lastTime := startTime
		lastCounter := int64(0)
		for {
			select {
			case <-done:
				return
			case curTime := <-ticker.C:
				cur := counter.Load()

				diffCounter := cur - lastCounter
				diffTime := curTime.Sub(lastTime)

				lastTime = curTime
				lastCounter = cur

				relativeTime := curTime.Sub(startTime)
				rate := float64(diffCounter) / diffTime.Seconds()
				printProgress(relativeTime, rate, cur)
			}
		}
	}()

	var workers sync.WaitGroup
	workers.Add(numJobs)
	indices := make(chan int, 10*numJobs)
	for i := 0; i < numJobs; i++ {
		go func() {
			defer workers.Done()
			for index := range indices {
				if abort.Load() {
					continue // < keep draining the channel
				}
				source := generator.Generate(rand.New(seed + uint64(index)))
				counter.Add(1)
				if !opFunction(index, source) {
					abort.Store(true)
				}
			}
		}()
	}

	for i := 0; i < count && !abort.Load(); i++ {
		indices <- i
	}
	close(indices)
	workers.Wait()

	close(done)   // < signals progress printer to stop
	<-printerDone // < blocks until channel is closed by progress printer
}
