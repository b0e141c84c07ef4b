// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/cmd/canopy/cli"
	"github.com/bureau-foundation/canopy/lib/config"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/view"
)

// connectionFlags are shared by every command that reaches the daemon.
type connectionFlags struct {
	configPath string
	socketPath string
	logLevel   string
}

func (f *connectionFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.configPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
	flagSet.StringVar(&f.socketPath, "socket", "", "canopyd socket (overrides paths.socket)")
	flagSet.StringVar(&f.logLevel, "log-level", "warn", "debug, info, warn or error")
}

// session is a resolved connection to the daemon.
type session struct {
	config *config.Config
	socket *service.Client
	client *view.Client
	logger *slog.Logger
}

func (f *connectionFlags) connect(streams cli.IO) (*session, error) {
	var cfg *config.Config
	var err error
	if f.configPath != "" {
		cfg, err = config.LoadFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.socketPath != "" {
		cfg.Paths.Socket = f.socketPath
	}
	if cfg.Paths.Socket == "" {
		return nil, fmt.Errorf("no socket configured; pass --socket")
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(f.logLevel)); err != nil {
		return nil, fmt.Errorf("--log-level: %w", err)
	}
	logger := cli.NewCommandLogger(streams.Stderr, level)

	socket := service.NewClient(cfg.Paths.Socket)
	return &session{
		config: cfg,
		socket: socket,
		client: view.NewClient(socket, logger),
		logger: logger,
	}, nil
}
