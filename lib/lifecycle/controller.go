// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/canopy/lib/clock"
	"github.com/bureau-foundation/canopy/lib/dispose"
)

// DefaultDebounce is how long the page must stay hidden before the
// subscription is released.
const DefaultDebounce = 1500 * time.Millisecond

// Visibility is a read-only source of page visibility.
type Visibility interface {
	// Hidden reports the current visibility.
	Hidden() bool

	// OnChange registers f to be called with the new visibility on
	// every change. Releasing the returned handle unregisters f.
	OnChange(f func(hidden bool)) dispose.Releaser
}

// Subscriber is the subscription the controller gates. Ensure must be
// a no-op when the subscription is already held; Release must be a
// no-op when it is not.
type Subscriber interface {
	Ensure()
	Release()
}

// Config holds a Controller's dependencies.
type Config struct {
	Visibility Visibility
	Subscriber Subscriber

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Debounce defaults to DefaultDebounce. Non-positive values also
	// mean the default.
	Debounce time.Duration

	Logger *slog.Logger
}

// Controller runs the visibility state machine for one context. Safe
// for concurrent use.
type Controller struct {
	subscriber Subscriber
	clock      clock.Clock
	debounce   time.Duration
	logger     *slog.Logger

	mu          sync.Mutex
	state       State
	timer       *clock.Timer
	generation  uint64
	released    bool
	initialized bool
	listener    dispose.Releaser
}

// New derives the initial state from the current visibility (visible:
// Active with the subscription ensured; hidden: Hidden with none) and
// starts listening for changes.
func New(config Config) *Controller {
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}

	controller := &Controller{
		subscriber: config.Subscriber,
		clock:      config.Clock,
		debounce:   config.Debounce,
		logger:     config.Logger,
	}

	// Listen before reading the initial visibility. Changes delivered
	// before the read are reflected in it and dropped; a late repeat of
	// the read state is a no-op transition.
	listener := config.Visibility.OnChange(controller.visibilityChanged)

	controller.mu.Lock()
	defer controller.mu.Unlock()
	if config.Visibility.Hidden() {
		controller.state = Hidden
	} else {
		controller.state = Active
		controller.subscriber.Ensure()
	}
	controller.initialized = true
	controller.listener = listener
	return controller
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Release stops the controller: the visibility listener is removed and
// a pending timer is cancelled. The subscription itself is left to its
// owner. Idempotent.
func (c *Controller) Release() {
	if c == nil {
		return
	}
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return
	}
	c.released = true
	c.stopTimerLocked()
	listener := c.listener
	c.listener = nil
	c.mu.Unlock()

	if listener != nil {
		listener.Release()
	}
}

func (c *Controller) visibilityChanged(hidden bool) {
	event := EventVisible
	if hidden {
		event = EventHidden
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.initialized {
		return
	}
	c.applyLocked(event)
}

func (c *Controller) timerFired(generation uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		c.logger.Debug("discarding stale release timer", "generation", generation)
		return
	}
	c.applyLocked(EventTimerFired)
}

func (c *Controller) applyLocked(event Event) {
	if c.released {
		return
	}
	from := c.state
	step := next(from, event)
	c.state = step.next

	switch step.effect {
	case effectArmTimer:
		c.stopTimerLocked()
		generation := c.generation
		c.timer = c.clock.AfterFunc(c.debounce, func() {
			c.timerFired(generation)
		})
	case effectCancelTimer:
		c.stopTimerLocked()
	case effectRelease:
		c.timer = nil
		c.subscriber.Release()
	case effectEnsure:
		c.subscriber.Ensure()
	}

	if from != step.next {
		c.logger.Debug("visibility transition",
			"event", event.String(),
			"from", from.String(),
			"to", step.next.String(),
		)
	}
}

// stopTimerLocked cancels the pending timer and advances the
// generation so a firing already in flight is discarded.
func (c *Controller) stopTimerLocked() {
	c.generation++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
