// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/settings"
)

func writeCommand() *cli.Command {
	var (
		connection connectionFlags
		target     string
	)
	return &cli.Command{
		Name:    "write",
		Summary: "Change settings",
		Description: "Merge field=value pairs into the record. Values are JSON literals;\n" +
			"null resets a field to its default. With --context, scoped fields\n" +
			"are pinned to that context.",
		Usage: "canopy write field=value... [flags]",
		Examples: []cli.Example{
			{Description: "Turn ghost mode on", Command: "canopy write ghostMode=true"},
			{Description: "Pin a context's speed", Command: "canopy write speed=1.75 --context 6f1c..."},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("write", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&target, "context", "", "write scoped fields into this context's scope")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one field=value is required")
			}
			partial, err := parseAssignments(args)
			if err != nil {
				return err
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			return applyWrite(ctx, streams, sess, partial, settings.ContextID(target))
		},
	}
}

func importCommand() *cli.Command {
	var (
		connection  connectionFlags
		skipUnknown bool
	)
	return &cli.Command{
		Name:    "import",
		Summary: "Write a JSONC settings export",
		Description: "Read a settings export (JSON with comments and trailing commas)\n" +
			"and write it into the global record. Unknown keys are rejected\n" +
			"unless --skip-unknown is given. Use - to read standard input.",
		Usage: "canopy import FILE [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.BoolVar(&skipUnknown, "skip-unknown", false, "drop keys canopy does not synchronize")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one FILE is required")
			}
			var data []byte
			var err error
			if args[0] == "-" {
				data, err = io.ReadAll(streams.Stdin)
			} else {
				data, err = os.ReadFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("reading export: %w", err)
			}
			partial, err := settings.ParseExport(data, skipUnknown)
			if err != nil {
				return err
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			return applyWrite(ctx, streams, sess, partial, "")
		},
	}
}

func unpinCommand() *cli.Command {
	var (
		connection connectionFlags
		target     string
	)
	return &cli.Command{
		Name:    "unpin",
		Summary: "Drop a context's pinned scope",
		Usage:   "canopy unpin --context ID [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("unpin", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&target, "context", "", "context whose scope is dropped (required)")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if target == "" {
				return fmt.Errorf("--context is required")
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			return sess.client.Unpin(ctx, settings.ContextID(target))
		},
	}
}

// parseAssignments turns field=value pairs into a validated view. The
// pairs are assembled into one JSON object so values go through the
// same decoding as an import.
func parseAssignments(args []string) (settings.View, error) {
	raw := make(map[string]json.RawMessage, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("%q is not field=value", arg)
		}
		if !json.Valid([]byte(value)) {
			return nil, fmt.Errorf("%s: value %q is not a JSON literal (quote strings: %s='\"%s\"')", name, value, name, value)
		}
		raw[name] = json.RawMessage(value)
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	return settings.ParseExport(data, false)
}

func applyWrite(ctx context.Context, streams cli.IO, sess *session, partial settings.View, target settings.ContextID) error {
	changed, err := sess.client.SetView(ctx, partial, target)
	if err != nil {
		return err
	}
	return cli.WriteJSON(streams.Stdout, map[string]any{"changed": changed.Strings()})
}
