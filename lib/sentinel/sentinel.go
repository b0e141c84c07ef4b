// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sentinel holds a context's long-lived channel to the daemon.
//
// The host does not reliably tell a context when it is torn down, but
// it does close the context's connections. The sentinel channel is
// therefore the one teardown signal a context can count on: when it
// ends, for any reason, the sentinel releases the [dispose.Group] of
// everything the context owns, exactly once.
package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/canopy/lib/dispose"
	"github.com/bureau-foundation/canopy/lib/netutil"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
)

// Channel is an open duplex channel. Recv blocks until the next frame
// or the end of the channel; Close unblocks it.
type Channel interface {
	Recv(frame any) error
	Close() error
}

// DialFunc opens the sentinel channel.
type DialFunc func(ctx context.Context) (Channel, error)

// ServiceDialer returns a DialFunc that opens the connect stream of id
// on the daemon behind client.
func ServiceDialer(client *service.Client, id settings.ContextID) DialFunc {
	return func(ctx context.Context) (Channel, error) {
		stream, err := client.OpenStream(ctx, schema.ActionConnect, map[string]any{
			"context": id,
			"channel": schema.ChannelName,
		})
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
}

// Sentinel watches one channel and releases its group when the
// channel ends.
type Sentinel struct {
	channel Channel
	owned   *dispose.Group
	logger  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}

	mu     sync.Mutex
	reason error
}

// Open dials the channel, waits for the daemon's connected frame and
// starts watching. The group is not touched when Open fails; the
// caller decides what a context without a channel does.
func Open(ctx context.Context, dial DialFunc, owned *dispose.Group, logger *slog.Logger) (*Sentinel, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	channel, err := dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("opening %s channel: %w", schema.ChannelName, err)
	}

	// Close the channel if ctx ends while waiting for the handshake.
	stop := context.AfterFunc(ctx, func() { channel.Close() })
	var frame schema.Frame
	err = channel.Recv(&frame)
	stopped := stop()
	if err != nil {
		channel.Close()
		if !stopped {
			return nil, fmt.Errorf("opening %s channel: %w", schema.ChannelName, ctx.Err())
		}
		return nil, fmt.Errorf("opening %s channel: %w", schema.ChannelName, err)
	}
	switch frame.Type {
	case schema.FrameConnected:
	case schema.FrameError:
		channel.Close()
		return nil, fmt.Errorf("opening %s channel: daemon refused: %s", schema.ChannelName, frame.Message)
	default:
		channel.Close()
		return nil, fmt.Errorf("opening %s channel: unexpected first frame %q", schema.ChannelName, frame.Type)
	}

	sentinel := &Sentinel{
		channel: channel,
		owned:   owned,
		logger:  logger,
		done:    make(chan struct{}),
	}
	go sentinel.watch()
	return sentinel, nil
}

// watch is the channel's only disconnect handler.
func (s *Sentinel) watch() {
	var reason error
	for {
		var frame schema.Frame
		if err := s.channel.Recv(&frame); err != nil {
			reason = err
			break
		}
		if frame.Type == schema.FrameError {
			reason = errors.New(frame.Message)
			break
		}
	}
	s.channel.Close()

	s.mu.Lock()
	s.reason = reason
	s.mu.Unlock()

	if netutil.IsExpectedCloseError(reason) {
		s.logger.Debug("sentinel channel ended", "reason", reason)
	} else {
		s.logger.Warn("sentinel channel failed", "error", reason)
	}
	s.owned.Release()
	close(s.done)
}

// Close ends the channel from this side. The group is released through
// the same path as any other disconnect. Idempotent.
func (s *Sentinel) Close() {
	if s == nil {
		return
	}
	s.closeOnce.Do(func() { s.channel.Close() })
}

// Done is closed after the group has been released.
func (s *Sentinel) Done() <-chan struct{} {
	return s.done
}

// Reason returns why the channel ended, or nil while it is open.
func (s *Sentinel) Reason() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}
