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
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	// Registers the interpreters available through --interpreter.
	_ "github.com/Fantom-foundation/asmbox/go/interpreter/avm"
)

// Run using
//  go run ./go/driver <command> <flags>

func main() {
	app := &cli.App{
		Name:      "asmbox",
		Usage:     "Assemble, run and debug programs of the toy assembly machine",
		Copyright: "(c) 2024 Fantom Foundation",
		Commands: []*cli.Command{
			&AssembleCmd,
			&RunCmd,
			&StepCmd,
			&StressCmd,
			&WorkerCmd,
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
