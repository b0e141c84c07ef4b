// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// canopy is the operator CLI for canopyd.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/cmd/canopy/commands"
	"github.com/bureau-foundation/canopy/lib/process"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := commands.Root().Execute(ctx, cli.StandardIO(), os.Args[1:])
	stop()
	if err != nil {
		process.Fatal(err)
	}
}
