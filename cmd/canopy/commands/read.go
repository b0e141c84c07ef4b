// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/settings"
)

func readCommand() *cli.Command {
	var (
		connection connectionFlags
		target     string
	)
	return &cli.Command{
		Name:    "read",
		Summary: "Print settings as JSON",
		Description: "Print the current values of the named fields, or of every field\n" +
			"when none are named. With --context, scoped fields resolve through\n" +
			"that context's pinned scope.",
		Usage: "canopy read [field...] [flags]",
		Examples: []cli.Example{
			{Description: "Everything", Command: "canopy read"},
			{Description: "One context's speed", Command: "canopy read speed --context 6f1c..."},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("read", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&target, "context", "", "resolve scoped fields for this context")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			fields := settings.All()
			if len(args) > 0 {
				var err error
				if fields, err = settings.ParseFieldSet(args); err != nil {
					return err
				}
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			view, err := readView(ctx, sess, fields, settings.ContextID(target))
			if err != nil {
				return err
			}
			return cli.WriteJSON(streams.Stdout, view)
		},
	}
}

func exportCommand() *cli.Command {
	var connection connectionFlags
	return &cli.Command{
		Name:    "export",
		Summary: "Print every global setting as an importable JSON object",
		Usage:   "canopy export [flags] > settings.json",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
			connection.register(flagSet)
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("export takes no arguments")
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			view, err := readView(ctx, sess, settings.All(), "")
			if err != nil {
				return err
			}
			return cli.WriteJSON(streams.Stdout, view)
		},
	}
}

// readView reads through the socket directly rather than through
// FetchView, which hides failures behind defaults.
func readView(ctx context.Context, sess *session, fields settings.FieldSet, target settings.ContextID) (settings.View, error) {
	var view settings.View
	err := sess.socket.Call(ctx, schema.ActionRead, map[string]any{
		"fields": fields.Strings(),
		"target": target,
	}, &view)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return view.Restrict(fields), nil
}
