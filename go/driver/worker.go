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
	"os"

	"github.com/Fantom-foundation/asmbox/go/sandbox"
	"github.com/urfave/cli/v2"
)

// WorkerCmd is the entry point of sandbox processes. It reads requests from
// stdin and writes events to stdout, configured by environment variables.
var WorkerCmd = cli.Command{
	Action: doWorker,
	Name:   "worker",
	Usage:  "Serves sandbox requests on stdin and stdout",
	Hidden: true,
}

func doWorker(context *cli.Context) error {
	config, err := sandbox.ConfigFromEnv(os.LookupEnv)
	if err != nil {
		return err
	}
	return sandbox.ServeStream(context.Context, config, os.Stdin, os.Stdout)
}
