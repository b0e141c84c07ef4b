// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/activation"
	"github.com/bureau-foundation/canopy/lib/contentscript"
	"github.com/bureau-foundation/canopy/lib/dispose"
	"github.com/bureau-foundation/canopy/lib/lifecycle"
	"github.com/bureau-foundation/canopy/lib/router"
	"github.com/bureau-foundation/canopy/lib/settings"
)

// attachEvent is one line of attach output.
type attachEvent struct {
	Event     string        `json:"event"`
	Context   string        `json:"context,omitempty"`
	State     string        `json:"state,omitempty"`
	Directive string        `json:"directive,omitempty"`
	Minimal   *bool         `json:"minimal,omitempty"`
	View      settings.View `json:"view,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func attachCommand() *cli.Command {
	var (
		connection connectionFlags
		url        string
		hidden     bool
	)
	return &cli.Command{
		Name:    "attach",
		Summary: "Run a simulated context against the daemon",
		Description: "Start a full context runtime for --url and drive its visibility\n" +
			"from standard input: one of hidden, visible or quit per line.\n" +
			"Directives, projections and lifecycle states are printed as JSON\n" +
			"lines. An activation directive also reports whether the minimal\n" +
			"UI applies to --url under ghostModeUrlCondition. The context\n" +
			"ends on quit, end of input, interrupt or when\n" +
			"the daemon goes away.",
		Usage: "canopy attach --url URL [flags]",
		Examples: []cli.Example{
			{Description: "A forced ghost site", Command: "canopy attach --url https://web.whatsapp.com/"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("attach", pflag.ContinueOnError)
			connection.register(flagSet)
			flagSet.StringVar(&url, "url", "", "document URL of the context (required)")
			flagSet.BoolVar(&hidden, "hidden", false, "start hidden")
			return flagSet
		},
		Run: func(ctx context.Context, streams cli.IO, args []string) error {
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			sess, err := connection.connect(streams)
			if err != nil {
				return err
			}
			return runAttach(ctx, streams, sess, url, hidden)
		},
	}
}

func runAttach(ctx context.Context, streams cli.IO, sess *session, url string, hidden bool) error {
	out := newLineWriter(streams.Stdout)
	visibility := lifecycle.NewSwitch(hidden)

	runtime, err := contentscript.Start(ctx, contentscript.Config{
		Socket:     sess.socket,
		Visibility: visibility,
		URL:        url,
		Debounce:   sess.config.Debounce(),
		Logger:     sess.logger,
		NewOverlay: func(view settings.View) dispose.Releaser {
			out.write(attachEvent{Event: "overlay", View: view})
			return dispose.Func(func() { out.write(attachEvent{Event: "overlay-released"}) })
		},
		OnView: func(view settings.View) {
			out.write(attachEvent{Event: "view", View: view})
		},
		OnDirective: func(directive router.Directive) {
			event := attachEvent{Event: "directive", Directive: directive.Type}
			if directive.Type == router.TypeActivateGhost {
				condition := sess.client.FetchView(ctx, activation.ConditionFields, "")
				minimal := activation.Minimal(url, condition)
				event.Minimal = &minimal
			}
			out.write(event)
		},
	})
	if err != nil {
		return err
	}
	defer runtime.Release()
	out.write(attachEvent{Event: "started", Context: string(runtime.Context())})

	if err := runtime.DOMReady(ctx); err != nil {
		return fmt.Errorf("attaching: %w", err)
	}
	reportState := func() {
		out.write(attachEvent{Event: "state", State: runtime.Controller().State().String()})
	}
	reportState()

	commands := make(chan string)
	go func() {
		defer close(commands)
		scanner := bufio.NewScanner(streams.Stdin)
		for scanner.Scan() {
			select {
			case commands <- strings.TrimSpace(scanner.Text()):
			case <-runtime.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return out.err()
		case <-runtime.Done():
			out.write(attachEvent{Event: "disconnected"})
			return out.err()
		case command, ok := <-commands:
			if !ok {
				return out.err()
			}
			switch command {
			case "hidden":
				visibility.Set(true)
			case "visible":
				visibility.Set(false)
			case "quit":
				return out.err()
			case "":
				continue
			default:
				out.write(attachEvent{Event: "error", Error: fmt.Sprintf("unknown command %q", command)})
				continue
			}
			reportState()
		}
	}
}
