// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/canopy/lib/dispose"
	"github.com/bureau-foundation/canopy/lib/netutil"
	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
)

// Observer is called with every new projection. Observers run on the
// ConfigSync's goroutine, one at a time, in registration order. An
// observer must not block; it may call Release.
type Observer func(settings.View)

// ConfigSync keeps a projection of a field set current for one
// context.
//
// The zero value and the nil pointer are valid, never-initialized
// instances: View reports nothing and Release is a no-op.
type ConfigSync struct {
	client *Client
	owner  settings.ContextID
	fields settings.FieldSet
	logger *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
	ready  chan struct{}

	mu        sync.Mutex
	view      settings.View
	observers []*observerEntry
	stream    *service.Stream
	released  bool
}

type observerEntry struct {
	fn Observer
}

// NewConfigSync starts synchronizing fields for owner. It returns
// immediately; the subscribe stream is opened in the background and
// observers are called once the initial projection arrives. If the
// stream cannot be opened the initial projection comes from FetchView
// (defaults when the daemon is unreachable) and no updates follow.
func (c *Client) NewConfigSync(owner settings.ContextID, fields settings.FieldSet, observers ...Observer) *ConfigSync {
	ctx, cancel := context.WithCancel(context.Background())
	configSync := &ConfigSync{
		client: c,
		owner:  owner,
		fields: fields,
		logger: c.logger.With("context", string(owner), "fields", fields.Key()),
		cancel: cancel,
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	for _, observer := range observers {
		if observer != nil {
			configSync.observers = append(configSync.observers, &observerEntry{fn: observer})
		}
	}
	go configSync.run(ctx)
	return configSync
}

// Fields returns the synchronized field set.
func (s *ConfigSync) Fields() settings.FieldSet {
	if s == nil {
		return nil
	}
	return s.fields
}

// View returns the cached projection. ok is false until the initial
// projection has arrived. The returned View must not be modified.
func (s *ConfigSync) View() (view settings.View, ok bool) {
	if s == nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view, s.view != nil
}

// Ready is closed once the initial projection is cached. A released
// or never-initialized ConfigSync may never become ready.
func (s *ConfigSync) Ready() <-chan struct{} {
	if s == nil || s.ready == nil {
		return nil
	}
	return s.ready
}

// Done is closed when the background goroutine has exited.
func (s *ConfigSync) Done() <-chan struct{} {
	if s == nil || s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// OnChange registers an observer for later projections. It is not
// called with the current one. Releasing the returned handle removes
// it.
func (s *ConfigSync) OnChange(observer Observer) *dispose.Handle {
	if s == nil || observer == nil {
		return dispose.Func(nil)
	}
	entry := &observerEntry{fn: observer}
	s.mu.Lock()
	s.observers = append(s.observers, entry)
	s.mu.Unlock()
	return dispose.Func(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.observers {
			if existing == entry {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	})
}

// Release stops synchronization and unregisters the daemon-side
// subscription. No observer is called after Release returns, except
// one already running. Idempotent, and safe on a nil or zero value.
func (s *ConfigSync) Release() {
	if s == nil {
		return
	}
	s.mu.Lock()
	if s.released || s.cancel == nil {
		s.released = true
		s.mu.Unlock()
		return
	}
	s.released = true
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	s.cancel()
	if stream != nil {
		stream.Close()
	}
}

func (s *ConfigSync) run(ctx context.Context) {
	defer close(s.done)

	stream, err := s.client.service.OpenStream(ctx, schema.ActionSubscribe, map[string]any{
		"context": s.owner,
		"fields":  s.fields.Strings(),
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.logger.Debug("subscribe failed, falling back to one-shot fetch", "error", err)
		s.deliver(s.client.FetchView(ctx, s.fields, s.owner))
		return
	}
	defer stream.Close()

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.stream = stream
	s.mu.Unlock()

	initial := true
	for {
		var frame schema.Frame
		if err := stream.Recv(&frame); err != nil {
			if initial && ctx.Err() == nil {
				s.logger.Debug("subscribe stream ended before first frame, falling back to one-shot fetch", "error", err)
				s.deliver(s.client.FetchView(ctx, s.fields, s.owner))
				return
			}
			s.logEnd(ctx, err)
			return
		}

		switch frame.Type {
		case schema.FrameView:
			initial = false
			s.deliver(frame.View.Restrict(s.fields))
		case schema.FrameHeartbeat:
		case schema.FrameError:
			s.logger.Warn("subscribe stream rejected", "message", frame.Message)
			if initial {
				s.deliver(settings.Defaults(s.fields))
			}
			return
		default:
			s.logger.Debug("ignoring unknown frame", "type", frame.Type)
		}
	}
}

func (s *ConfigSync) logEnd(ctx context.Context, err error) {
	if ctx.Err() != nil || netutil.IsExpectedCloseError(err) || errors.Is(err, context.Canceled) {
		s.logger.Debug("subscribe stream ended", "error", err)
		return
	}
	s.logger.Warn("subscribe stream failed", "error", err)
}

// deliver replaces the cache and calls the observers.
func (s *ConfigSync) deliver(view settings.View) {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	first := s.view == nil
	s.view = view
	observers := make([]*observerEntry, len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	if first {
		close(s.ready)
	}
	for _, entry := range observers {
		s.mu.Lock()
		released := s.released
		s.mu.Unlock()
		if released {
			return
		}
		entry.fn(view)
	}
}
