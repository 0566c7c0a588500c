// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package avm

import (
	"fmt"
	"strings"
	"sync"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// statisticRunner counts executed opcodes and opcode pairs over all runs
// performed with it. It may be shared by concurrent runs.
type statisticRunner struct {
	mutex sync.Mutex
	stats *statistics
}

func (s *statisticRunner) run(m *Machine) (asmbox.Status, error) {
	stats := statsCollector{stats: newStatistics()}
	status := m.status
	var err error
	for status == asmbox.Running {
		if ip := m.state.Registers[asmbox.IP]; 0 <= ip && int(ip) < len(m.code) {
			stats.nextOp(m.code[ip].opcode)
		}
		status, err = step(m)
		if err != nil {
			break
		}
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stats == nil {
		s.stats = newStatistics()
	}
	s.stats.insert(stats.stats)
	return status, err
}

func (s *statisticRunner) getSummary() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.stats == nil {
		s.stats = newStatistics()
	}
	return s.stats.print()
}

func (s *statisticRunner) reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.stats = newStatistics()
}

type opPair struct {
	first, second asm.OpCode
}

type statistics struct {
	count       uint64
	singleCount map[asm.OpCode]uint64
	pairCount   map[opPair]uint64
}

func newStatistics() *statistics {
	return &statistics{
		singleCount: map[asm.OpCode]uint64{},
		pairCount:   map[opPair]uint64{},
	}
}

func (s *statistics) insert(src *statistics) {
	s.count += src.count
	for k, v := range src.singleCount {
		s.singleCount[k] += v
	}
	for k, v := range src.pairCount {
		s.pairCount[k] += v
	}
}

// topN returns the n keys with the highest counts, ties broken by the
// given order.
func topN[K comparable](data map[K]uint64, n int, less func(a, b K) bool) []K {
	keys := maps.Keys(data)
	slices.SortFunc(keys, func(a, b K) int {
		if data[a] != data[b] {
			if data[a] > data[b] {
				return -1
			}
			return 1
		}
		if less(a, b) {
			return -1
		}
		if less(b, a) {
			return 1
		}
		return 0
	})
	if len(keys) < n {
		return keys
	}
	return keys[:n]
}

func (s *statistics) percent(count uint64) float32 {
	if s.count == 0 {
		return 0
	}
	return float32(count*100) / float32(s.count)
}

func (s *statistics) print() string {
	builder := strings.Builder{}
	write := func(format string, args ...interface{}) {
		builder.WriteString(fmt.Sprintf(format, args...))
	}

	write("\n----- Statistics ------\n")
	write("\nSteps: %d\n", s.count)
	write("\nSingles:\n")
	for _, op := range topN(s.singleCount, 5, func(a, b asm.OpCode) bool { return a < b }) {
		count := s.singleCount[op]
		write("\t%-15v: %d (%.2f%%)\n", op, count, s.percent(count))
	}
	write("\nPairs:\n")
	for _, pair := range topN(s.pairCount, 5, func(a, b opPair) bool {
		return a.first < b.first || (a.first == b.first && a.second < b.second)
	}) {
		count := s.pairCount[pair]
		write("\t%-15v%-15v: %d (%.2f%%)\n", pair.first, pair.second, count, s.percent(count))
	}
	write("\n")

	return builder.String()
}

type statsCollector struct {
	stats *statistics
	last  asm.OpCode
}

func (s *statsCollector) nextOp(op asm.OpCode) {
	s.stats.count++
	s.stats.singleCount[op]++
	if s.stats.count > 1 {
		s.stats.pairCount[opPair{s.last, op}]++
	}
	s.last = op
}
