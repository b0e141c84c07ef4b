// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/settings"
)

func watchCommand() *cli.Command {
	var (
		connection connectionFlags
		owner      string
	)
	return &cli.Command{
		Name:    "watch",
		Summary: "Stream settings changes as JSON lines",
		Description: "Subscribe to the named fields and print one JSON line per\n" +
			"projection: the current values first, then each change, until\n" +
			"interrupted or the daemon goes away.",
		Usage: "canopy watch field... [flags]",
		Examples: []cli.Example{
			{Description: "Follow the ghost mode settings", Command: "canopy watch ghostMode ghostModeUrlCondition"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("watch", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&owner, "context", "", "subscribe as this context (default: a fresh ID)")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("at least one field is required")
			}
			fields, err := settings.ParseFieldSet(args)
			if err != nil {
				return err
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			id := settings.ContextID(owner)
			if id == "" {
				id = settings.NewContextID()
			}

			out := newLineWriter(streams.Stdout)
			configSync := sess.client.NewConfigSync(id, fields, func(view settings.View) {
				out.write(view)
			})
			defer configSync.Release()

			select {
			case <-ctx.Done():
			case <-configSync.Done():
			}
			return out.err()
		},
	}
}

// lineWriter serializes JSON lines from concurrent producers and keeps
// the first write error.
type lineWriter struct {
	mu       sync.Mutex
	w        io.Writer
	firstErr error
}

func newLineWriter(w io.Writer) *lineWriter {
	return &lineWriter{w: w}
}

func (l *lineWriter) write(value any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := cli.WriteJSONLine(l.w, value); err != nil && l.firstErr == nil {
		l.firstErr = err
	}
}

func (l *lineWriter) err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.firstErr
}
