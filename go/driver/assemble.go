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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Fantom-foundation/asmbox/go/asm"
	"github.com/Fantom-foundation/asmbox/go/asmbox"
	"github.com/urfave/cli/v2"
)

var AssembleCmd = cli.Command{
	Action:    doAssemble,
	Name:      "assemble",
	Usage:     "Assembles a source file and prints the resulting program",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "print the program in its JSON wire format",
		},
	},
}

func doAssemble(context *cli.Context) error {
	program, err := loadProgram(context)
	if err != nil {
		return err
	}
	return printProgram(context.App.Writer, program, context.Bool("json"))
}

func printProgram(w io.Writer, program *asmbox.Program, asJson bool) error {
	if asJson {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(program)
	}
	_, err := fmt.Fprint(w, program.String())
	return err
}

// loadProgram assembles the source file named by the first argument of the
// command.
func loadProgram(context *cli.Context) (*asmbox.Program, error) {
	filename, err := sourceFile(context)
	if err != nil {
		return nil, err
	}
	return assembleFile(filename, asm.Assemble)
}

func sourceFile(context *cli.Context) (string, error) {
	if context.Args().Len() != 1 {
		return "", fmt.Errorf("expected exactly one source file, got %d arguments", context.Args().Len())
	}
	return context.Args().First(), nil
}

// assembleFile reads the given source file and assembles it using the
// provided assembler function.
func assembleFile(filename string, assemble func(string) (*asmbox.Program, error)) (*asmbox.Program, error) {
	source, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	program, err := assemble(string(source))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return program, nil
}
