// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// canopyd owns the configuration record and serves it to contexts over
// a Unix socket.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/canopy/lib/config"
	"github.com/bureau-foundation/canopy/lib/process"
	"github.com/bureau-foundation/canopy/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		process.Fatal(err)
	}
}

func run(args []string) error {
	var (
		configPath  string
		socketPath  string
		stateFile   string
		metricsAddr string
		logLevel    string
		showVersion bool
	)

	flags := pflag.NewFlagSet("canopyd", pflag.ContinueOnError)
	flags.StringVar(&configPath, "config", "", "configuration file (default: $"+config.EnvVar+")")
	flags.StringVar(&socketPath, "socket", "", "Unix socket to serve on (overrides paths.socket)")
	flags.StringVar(&stateFile, "state-file", "", "file the record is persisted to (overrides paths.state_file)")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "Prometheus listen address (overrides daemon.metrics_addr)")
	flags.StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
	flags.BoolVar(&showVersion, "version", false, "print version information and exit")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if showVersion {
		fmt.Printf("canopyd %s\n", version.Info())
		return nil
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	if flags.Changed("socket") {
		cfg.Paths.Socket = socketPath
	}
	if flags.Changed("state-file") {
		cfg.Paths.StateFile = stateFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Daemon.MetricsAddr = metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return serve(ctx, daemonConfig{
		SocketPath:        cfg.Paths.Socket,
		StateFile:         cfg.Paths.StateFile,
		MetricsAddr:       cfg.Daemon.MetricsAddr,
		HeartbeatInterval: cfg.HeartbeatInterval(),
	}, logger)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}
