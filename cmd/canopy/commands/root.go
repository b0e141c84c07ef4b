// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands assembles the canopy command tree.
package commands

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/version"
)

// Root returns the canopy command tree.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "canopy",
		Summary: "Read, write and watch canopyd settings",
		Description: "canopy talks to a running canopyd over its Unix socket.\n\n" +
			"Every command takes --socket (default from the configuration file\n" +
			"named by --config or $CANOPY_CONFIG).",
		Subcommands: []*cli.Command{
			readCommand(),
			writeCommand(),
			watchCommand(),
			importCommand(),
			exportCommand(),
			unpinCommand(),
			statusCommand(),
			attachCommand(),
			versionCommand(),
		},
	}
}

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			_, err := fmt.Fprintf(streams.Stdout, "canopy %s\n", version.Full())
			return err
		},
	}
}
