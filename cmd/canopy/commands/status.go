// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
)

// exitUnreachable is status's exit code when canopyd does not answer.
const exitUnreachable = 2

func statusCommand() *cli.Command {
	var (
		connection connectionFlags
		asJSON     bool
	)
	return &cli.Command{
		Name:    "status",
		Summary: "Show daemon status",
		Description: "Print canopyd's version, uptime and connection counts. Exits 2\n" +
			"when the daemon cannot be reached.",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("status", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.BoolVar(&asJSON, "json", false, "output as JSON")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			status, err := sess.client.Status(ctx)
			if err != nil {
				fmt.Fprintf(streams.Stderr, "canopyd not reachable at %s: %v\n", sess.config.Paths.Socket, err)
				return &cli.ExitError{Code: exitUnreachable}
			}
			if asJSON {
				return cli.WriteJSON(streams.Stdout, status)
			}
			fmt.Fprintf(streams.Stdout, "version:       %s\n", status.Version)
			fmt.Fprintf(streams.Stdout, "started:       %s (%s ago)\n",
				status.StartedAt.Format(time.RFC3339), time.Since(status.StartedAt).Round(time.Second))
			fmt.Fprintf(streams.Stdout, "contexts:      %d\n", status.Contexts)
			fmt.Fprintf(streams.Stdout, "subscriptions: %d\n", status.Subscriptions)
			fmt.Fprintf(streams.Stdout, "scopes:        %d\n", status.Scopes)
			return nil
		},
	}
}
