// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storeserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/canopy/lib/codec"
	"github.com/bureau-foundation/canopy/lib/netutil"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/store"
)

// frameWriteTimeout bounds a single frame write. A client that cannot
// accept a frame within it is treated as gone.
const frameWriteTimeout = 10 * time.Second

// streamWriter writes frames with a per-frame deadline and counts them.
type streamWriter struct {
	conn    net.Conn
	encoder *codec.Encoder
	server  *Server
}

func (s *Server) newStreamWriter(conn net.Conn) *streamWriter {
	return &streamWriter{conn: conn, encoder: codec.NewEncoder(conn), server: s}
}

func (w *streamWriter) write(frame schema.Frame) error {
	w.conn.SetWriteDeadline(time.Now().Add(frameWriteTimeout))
	if err := w.encoder.Encode(frame); err != nil {
		return err
	}
	w.server.metrics.frame(frame.Type)
	return nil
}

// writeError writes a terminal error frame. Failures are ignored; the
// stream is closing regardless.
func (w *streamWriter) writeError(err error) {
	w.write(schema.Frame{Type: schema.FrameError, Message: err.Error()})
}

// watchPeer returns a context cancelled when the peer closes its end of
// conn or parent is done. Clients never send after the request, so any
// read result ends the stream.
func watchPeer(parent context.Context, conn net.Conn) context.Context {
	ctx, cancel := context.WithCancel(parent)
	go func() {
		defer cancel()
		io.Copy(io.Discard, conn)
	}()
	return ctx
}

func (s *Server) logStreamEnd(action string, id settings.ContextID, err error) {
	if err == nil || netutil.IsExpectedCloseError(err) || errors.Is(err, context.Canceled) || errors.Is(err, store.ErrReleased) {
		s.logger.Debug("stream ended", "action", action, "context", string(id), "reason", err)
		return
	}
	s.logger.Warn("stream failed", "action", action, "context", string(id), "error", err)
}

func (s *Server) handleSubscribe(ctx context.Context, raw []byte, conn net.Conn) {
	writer := s.newStreamWriter(conn)

	var request schema.SubscribeRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		writer.writeError(fmt.Errorf("invalid subscribe request: %w", err))
		return
	}
	if request.Context == "" {
		writer.writeError(errMissingContext)
		return
	}
	fields, err := settings.ParseFieldSet(request.Fields)
	if err != nil {
		writer.writeError(err)
		return
	}
	if len(fields) == 0 {
		writer.writeError(errors.New("subscribe requires at least one field"))
		return
	}

	s.metrics.streamOpened(schema.ActionSubscribe)
	defer s.metrics.streamClosed(schema.ActionSubscribe)

	subscription := s.store.Subscribe(request.Context, fields)
	defer subscription.Release()

	s.logger.Debug("subscribe stream started",
		"context", string(request.Context),
		"fields", fields.Key(),
	)

	streamCtx := watchPeer(ctx, conn)

	// Next blocks; run it in its own goroutine so heartbeats keep
	// flowing between updates. The channel is closed when Next fails.
	views := make(chan settings.View)
	nextErr := make(chan error, 1)
	go func() {
		defer close(views)
		for {
			view, err := subscription.Next(streamCtx)
			if err != nil {
				nextErr <- err
				return
			}
			select {
			case views <- view:
			case <-streamCtx.Done():
				nextErr <- streamCtx.Err()
				return
			}
		}
	}()

	heartbeat := s.clock.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case view, ok := <-views:
			if !ok {
				s.logStreamEnd(schema.ActionSubscribe, request.Context, <-nextErr)
				return
			}
			if err := writer.write(schema.Frame{Type: schema.FrameView, View: view}); err != nil {
				s.logStreamEnd(schema.ActionSubscribe, request.Context, err)
				return
			}
		case <-heartbeat.C:
			if err := writer.write(schema.Frame{Type: schema.FrameHeartbeat}); err != nil {
				s.logStreamEnd(schema.ActionSubscribe, request.Context, err)
				return
			}
		case <-streamCtx.Done():
			s.logStreamEnd(schema.ActionSubscribe, request.Context, streamCtx.Err())
			return
		}
	}
}

func (s *Server) handleConnect(ctx context.Context, raw []byte, conn net.Conn) {
	writer := s.newStreamWriter(conn)

	var request schema.ConnectRequest
	if err := codec.Unmarshal(raw, &request); err != nil {
		writer.writeError(fmt.Errorf("invalid connect request: %w", err))
		return
	}
	if request.Context == "" {
		writer.writeError(errMissingContext)
		return
	}
	if request.Channel != schema.ChannelName {
		writer.writeError(fmt.Errorf("unknown channel %q", request.Channel))
		return
	}

	s.metrics.streamOpened(schema.ActionConnect)
	defer s.metrics.streamClosed(schema.ActionConnect)

	s.contextConnected(request.Context)
	s.logger.Info("context connected", "context", string(request.Context))
	defer func() {
		if !s.contextDisconnected(request.Context) {
			return
		}
		released := s.store.ReleaseContext(request.Context)
		s.metrics.orphans(released)
		s.logger.Info("context disconnected",
			"context", string(request.Context),
			"released_subscriptions", released,
		)
	}()

	if err := writer.write(schema.Frame{Type: schema.FrameConnected}); err != nil {
		s.logStreamEnd(schema.ActionConnect, request.Context, err)
		return
	}

	streamCtx := watchPeer(ctx, conn)
	heartbeat := s.clock.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-heartbeat.C:
			if err := writer.write(schema.Frame{Type: schema.FrameHeartbeat}); err != nil {
				s.logStreamEnd(schema.ActionConnect, request.Context, err)
				return
			}
		case <-streamCtx.Done():
			s.logStreamEnd(schema.ActionConnect, request.Context, streamCtx.Err())
			return
		}
	}
}
