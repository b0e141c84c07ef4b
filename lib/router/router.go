// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package router

import (
	"log/slog"
	"sync"

	"github.com/bureau-foundation/canopy/lib/dispose"
)

// Directive types.
const (
	TypeActivateGhost = "ACTIVATE_GHOST"
)

// Directive is a tagged message with no payload.
type Directive struct {
	Type string `json:"type"`
}

// ActivateGhost switches the receiving context into ghost mode.
var ActivateGhost = Directive{Type: TypeActivateGhost}

// Sender delivers directives. Send reports whether the directive was
// accepted for delivery, which says nothing about whether it will be
// handled.
type Sender interface {
	Send(Directive) bool
}

// queueSize bounds each channel's undelivered directives.
const queueSize = 32

// Router is the set of channels of one page.
type Router struct {
	logger *slog.Logger

	mu       sync.Mutex
	channels map[string]*Channel
	released bool
}

// New returns an empty Router. A nil logger discards.
func New(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Router{logger: logger, channels: make(map[string]*Channel)}
}

// Channel returns the channel called name, creating it on first use.
// After Release it returns a closed channel that drops everything.
func (r *Router) Channel(name string) *Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	if channel, ok := r.channels[name]; ok {
		return channel
	}
	channel := newChannel(name, r.logger.With("channel", name))
	if r.released {
		channel.Close()
		return channel
	}
	r.channels[name] = channel
	return channel
}

// Release closes every channel. Idempotent.
func (r *Router) Release() {
	r.mu.Lock()
	if r.released {
		r.mu.Unlock()
		return
	}
	r.released = true
	channels := r.channels
	r.channels = make(map[string]*Channel)
	r.mu.Unlock()

	for _, channel := range channels {
		channel.Close()
	}
}

// Channel is one named, ordered directive channel.
type Channel struct {
	name   string
	logger *slog.Logger
	queue  chan Directive
	stop   chan struct{}
	done   chan struct{}

	mu          sync.Mutex
	listeners   []*entry
	initFuncs   []*entry
	initialized bool
	started     bool
	closed      bool
}

type entry struct {
	directive func(Directive)
	init      func()
}

func newChannel(name string, logger *slog.Logger) *Channel {
	return &Channel{
		name:   name,
		logger: logger,
		queue:  make(chan Directive, queueSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Send queues directive for the current listeners. It returns false,
// dropping the directive, when the channel has no listener, its queue
// is full or it is closed.
func (c *Channel) Send(directive Directive) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.listeners) == 0 {
		c.logger.Debug("dropping directive: no listener", "type", directive.Type)
		return false
	}
	select {
	case c.queue <- directive:
		return true
	default:
		c.logger.Debug("dropping directive: queue full", "type", directive.Type)
		return false
	}
}

// Listen attaches f as a receiver. The first Listen on a channel runs
// its init callbacks. Releasing the handle detaches f.
func (c *Channel) Listen(f func(Directive)) *dispose.Handle {
	listener := &entry{directive: f}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dispose.Func(nil)
	}
	c.listeners = append(c.listeners, listener)
	if !c.started {
		c.started = true
		go c.dispatch()
	}
	var initFuncs []*entry
	if !c.initialized {
		c.initialized = true
		initFuncs = c.initFuncs
		c.initFuncs = nil
	}
	c.mu.Unlock()

	for _, callback := range initFuncs {
		callback.init()
	}

	return dispose.Func(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.listeners = remove(c.listeners, listener)
	})
}

// OnInit registers f to run once, when the first listener attaches. If
// one already has, f runs before OnInit returns. Releasing the handle
// before initialization cancels f.
func (c *Channel) OnInit(f func()) *dispose.Handle {
	callback := &entry{init: f}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return dispose.Func(nil)
	}
	if c.initialized {
		c.mu.Unlock()
		f()
		return dispose.Func(nil)
	}
	c.initFuncs = append(c.initFuncs, callback)
	c.mu.Unlock()

	return dispose.Func(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.initFuncs = remove(c.initFuncs, callback)
	})
}

// Close stops delivery. Queued directives are dropped. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.listeners = nil
	c.initFuncs = nil
	started := c.started
	c.mu.Unlock()

	close(c.stop)
	if !started {
		close(c.done)
	}
}

// Done is closed once the channel is closed and its dispatcher has
// exited.
func (c *Channel) Done() <-chan struct{} { return c.done }

func (c *Channel) dispatch() {
	defer close(c.done)
	for {
		select {
		case <-c.stop:
			return
		case directive := <-c.queue:
			c.mu.Lock()
			listeners := make([]*entry, len(c.listeners))
			copy(listeners, c.listeners)
			c.mu.Unlock()

			for _, listener := range listeners {
				listener.directive(directive)
			}
		}
	}
}

func remove(entries []*entry, target *entry) []*entry {
	for i, existing := range entries {
		if existing == target {
			return append(entries[:i:i], entries[i+1:]...)
		}
	}
	return entries
}
