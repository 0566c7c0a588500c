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
	"io"

	"github.com/Fantom-foundation/asmbox/go/asmbox"
)

// loggingRunner writes a trace line for every executed instruction.
type loggingRunner struct {
	log io.Writer
}

func newLogger(writer io.Writer) loggingRunner {
	return loggingRunner{log: writer}
}

func (l loggingRunner) run(m *Machine) (asmbox.Status, error) {
	status := m.status
	var err error
	for status == asmbox.Running {
		if l.log != nil {
			if err = m.WriteTrace(l.log); err != nil {
				return status, err
			}
		}
		status, err = step(m)
		if err != nil {
			return status, err
		}
	}
	return status, nil
}

// WriteTrace writes a line describing the instruction to be executed next
// to the given writer. Nothing is written if the instruction pointer is
// outside of the program.
func (m *Machine) WriteTrace(w io.Writer) error {
	// log format: <line>: <instruction>, IP=<ip>, FLAGS=<flags>\n
	ip := m.state.Registers[asmbox.IP]
	if ip < 0 || int(ip) >= len(m.code) {
		return nil
	}
	source := m.code[ip].source
	_, err := fmt.Fprintf(w, "%d: %v, IP=%d, FLAGS=%v\n", source.SourceLine, source, ip, m.flags())
	return err
}
