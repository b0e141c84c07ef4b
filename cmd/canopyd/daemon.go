// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/canopy/lib/clock"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/store"
	"github.com/bureau-foundation/canopy/lib/storeserver"
	"github.com/bureau-foundation/canopy/lib/version"
)

// daemonConfig is the resolved runtime configuration of canopyd.
type daemonConfig struct {
	SocketPath        string
	StateFile         string
	MetricsAddr       string
	HeartbeatInterval time.Duration

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Registry defaults to a fresh registry with the Go and process
	// collectors.
	Registry *prometheus.Registry

	// metricsListening, when set, receives the bound metrics address.
	metricsListening chan<- string
}

// serve runs the socket server and, when configured, the metrics
// endpoint until ctx is cancelled or either fails.
func serve(ctx context.Context, cfg daemonConfig, logger *slog.Logger) error {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
		cfg.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	backing, err := store.New(store.Config{
		Persister: store.NewStateFile(cfg.StateFile),
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}

	socket := service.NewSocketServer(cfg.SocketPath, logger)
	storeserver.New(storeserver.Config{
		Store:             backing,
		Clock:             cfg.Clock,
		Logger:            logger,
		Metrics:           storeserver.NewMetrics(cfg.Registry),
		HeartbeatInterval: cfg.HeartbeatInterval,
		Version:           version.Short(),
	}).Register(socket)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return socket.Serve(groupCtx)
	})
	if cfg.MetricsAddr != "" {
		group.Go(func() error {
			return serveMetrics(groupCtx, cfg, logger)
		})
	}

	logger.Info("canopyd running",
		"socket", cfg.SocketPath,
		"state_file", cfg.StateFile,
		"metrics", cfg.MetricsAddr,
		"version", version.Info(),
	)
	err = group.Wait()
	logger.Info("canopyd stopped")
	return err
}

// serveMetrics exposes cfg.Registry over HTTP until ctx ends.
func serveMetrics(ctx context.Context, cfg daemonConfig, logger *slog.Logger) error {
	listener, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("listening for metrics on %s: %w", cfg.MetricsAddr, err)
	}
	if cfg.metricsListening != nil {
		cfg.metricsListening <- listener.Addr().String()
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown", "error", err)
		}
	}()

	logger.Info("metrics endpoint listening", "addr", listener.Addr().String())
	err = server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		<-shutdownDone
		return nil
	}
	// Returning cancels ctx, which ends the shutdown goroutine.
	return fmt.Errorf("serving metrics: %w", err)
}
