// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storeserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/canopy/lib/clock"
	"github.com/bureau-foundation/canopy/lib/codec"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/store"
)

// DefaultHeartbeatInterval is the time between heartbeat frames on
// stream connections.
const DefaultHeartbeatInterval = 15 * time.Second

// Config holds the dependencies of a Server.
type Config struct {
	Store   *store.Store
	Clock   clock.Clock
	Logger  *slog.Logger
	Metrics *Metrics

	// HeartbeatInterval defaults to DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	// Version is reported by the status action.
	Version string
}

// Server implements the canopyd actions on top of a store.
type Server struct {
	store     *store.Store
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *Metrics
	heartbeat time.Duration
	version   string
	startedAt time.Time

	mu sync.Mutex
	// connected counts open connect streams per context.
	connected map[settings.ContextID]int
}

// New returns a Server. Store is required; a nil Clock means the real
// clock and a nil Logger discards.
func New(config Config) *Server {
	if config.Store == nil {
		panic("storeserver: Store is required")
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = DefaultHeartbeatInterval
	}
	return &Server{
		store:     config.Store,
		clock:     config.Clock,
		logger:    config.Logger,
		metrics:   config.Metrics,
		heartbeat: config.HeartbeatInterval,
		version:   config.Version,
		startedAt: config.Clock.Now(),
		connected: make(map[settings.ContextID]int),
	}
}

// Register installs every action on socket.
func (s *Server) Register(socket *service.SocketServer) {
	socket.Handle(schema.ActionRead, s.counted(schema.ActionRead, s.handleRead))
	socket.Handle(schema.ActionWrite, s.counted(schema.ActionWrite, s.handleWrite))
	socket.Handle(schema.ActionUnpin, s.counted(schema.ActionUnpin, s.handleUnpin))
	socket.Handle(schema.ActionStatus, s.counted(schema.ActionStatus, s.handleStatus))
	socket.HandleStream(schema.ActionSubscribe, s.handleSubscribe)
	socket.HandleStream(schema.ActionConnect, s.handleConnect)
}

func (s *Server) counted(action string, handler service.ActionFunc) service.ActionFunc {
	return func(ctx context.Context, raw []byte) (any, error) {
		result, err := handler(ctx, raw)
		s.metrics.request(action, err)
		return result, err
	}
}

func (s *Server) handleRead(ctx context.Context, raw []byte) (any, error) {
	var request schema.ReadRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid read request: %w", err)
	}
	fields, err := settings.ParseFieldSet(request.Fields)
	if err != nil {
		return nil, err
	}
	return s.store.Read(fields, request.Target), nil
}

func (s *Server) handleWrite(ctx context.Context, raw []byte) (any, error) {
	var request schema.WriteRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid write request: %w", err)
	}
	changed, err := s.store.Write(request.Values, request.Target)
	if err != nil {
		return nil, err
	}
	s.metrics.changed(len(changed))
	if len(changed) > 0 {
		s.logger.Info("configuration changed",
			"fields", changed.Strings(),
			"target", string(request.Target),
		)
	}
	return schema.WriteResponse{Changed: changed.Strings()}, nil
}

func (s *Server) handleUnpin(ctx context.Context, raw []byte) (any, error) {
	var request schema.UnpinRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		return nil, fmt.Errorf("invalid unpin request: %w", err)
	}
	return nil, s.store.Unpin(request.Target)
}

func (s *Server) handleStatus(ctx context.Context, raw []byte) (any, error) {
	stats := s.store.Stats()
	return schema.Status{
		Version:       s.version,
		StartedAt:     s.startedAt,
		Contexts:      s.ConnectedContexts(),
		Subscriptions: stats.Subscriptions,
		Scopes:        stats.Scopes,
	}, nil
}

// ConnectedContexts returns the number of contexts with an open
// sentinel channel.
func (s *Server) ConnectedContexts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.connected)
}

func (s *Server) contextConnected(id settings.ContextID) {
	s.mu.Lock()
	s.connected[id]++
	count := len(s.connected)
	s.mu.Unlock()
	s.metrics.contexts(count)
}

// contextDisconnected reports whether id has no connect streams left.
func (s *Server) contextDisconnected(id settings.ContextID) bool {
	s.mu.Lock()
	s.connected[id]--
	last := s.connected[id] <= 0
	if last {
		delete(s.connected, id)
	}
	count := len(s.connected)
	s.mu.Unlock()
	s.metrics.contexts(count)
	return last
}

var errMissingContext = errors.New("missing required field: context")
