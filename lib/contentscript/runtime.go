// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package contentscript assembles the per-context runtime: the
// directive tower, the activation decision, the overlay, the
// visibility-gated configuration subscription and the sentinel channel
// whose disconnect tears all of it down.
//
// A Runtime has two phases. [Start] runs when the context starts and
// builds what must exist before the document is ready. [Runtime.DOMReady]
// builds the lifecycle controller and opens the sentinel channel.
// Everything either phase builds is owned by one [dispose.Group].
package contentscript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/canopy/lib/activation"
	"github.com/bureau-foundation/canopy/lib/clock"
	"github.com/bureau-foundation/canopy/lib/dispose"
	"github.com/bureau-foundation/canopy/lib/lifecycle"
	"github.com/bureau-foundation/canopy/lib/router"
	"github.com/bureau-foundation/canopy/lib/sentinel"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/view"
)

// OverlayFields are fetched once at start to build the overlay.
var OverlayFields = settings.MustFieldSet(settings.FieldStaticOverlay, settings.FieldIndicatorInit)

// DefaultSyncFields are the fields a context keeps synchronized while
// visible.
var DefaultSyncFields = settings.MustFieldSet(
	settings.FieldEnabled,
	settings.FieldSpeed,
	settings.FieldLanguage,
	settings.FieldHideIndicator,
	settings.FieldHideMediaView,
	settings.FieldFreePitch,
	settings.FieldSpeedSlider,
	settings.FieldVirtualInput,
	settings.FieldCircleWidget,
	settings.FieldCircleWidgetIcon,
)

var (
	// ErrReleased is returned by DOMReady on a released runtime.
	ErrReleased = errors.New("runtime released")

	// ErrAlreadyReady is returned by a second DOMReady.
	ErrAlreadyReady = errors.New("DOMReady already called")
)

// Config is everything one context needs, resolved once before Start.
type Config struct {
	// Socket reaches the daemon. Required.
	Socket *service.Client

	// Visibility is the page's visibility source. Required.
	Visibility lifecycle.Visibility

	// URL is the document URL, used for the activation decision.
	URL string

	// Context identifies this context. A fresh ID is generated when
	// empty.
	Context settings.ContextID

	// Router is the page-scoped router the tower lives on. When nil the
	// runtime creates one and releases it with everything else.
	Router *router.Router

	// SyncFields defaults to DefaultSyncFields.
	SyncFields settings.FieldSet

	// Clock defaults to the real clock.
	Clock clock.Clock

	// Debounce defaults to lifecycle.DefaultDebounce.
	Debounce time.Duration

	// NewOverlay builds the overlay from the OverlayFields projection.
	// Optional.
	NewOverlay func(settings.View) dispose.Releaser

	// NewKeyListener is called at DOM-ready. Optional.
	NewKeyListener func() dispose.Releaser

	// OnView observes every projection the subscription delivers.
	OnView view.Observer

	// OnDirective, when set, listens on the talk channel. Attaching it
	// initializes the channel, which triggers the activation decision.
	OnDirective func(router.Directive)

	Logger *slog.Logger
}

func (c *Config) validate() error {
	var errs []error
	if c.Socket == nil {
		errs = append(errs, errors.New("socket client is required"))
	}
	if c.Visibility == nil {
		errs = append(errs, errors.New("visibility source is required"))
	}
	return errors.Join(errs...)
}

// Runtime is one context's assembled subsystems.
type Runtime struct {
	config  Config
	id      settings.ContextID
	client  *view.Client
	tower   *router.Tower
	decider *activation.Decider
	owned   *dispose.Group
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// deciding tracks the decider goroutine.
	deciding sync.WaitGroup

	mu         sync.Mutex
	slot       *view.Slot
	controller *lifecycle.Controller
	sentinel   *sentinel.Sentinel
	ready      bool
	stopped    bool
}

// Start builds the tower and the activation decider, fetches the
// overlay fields and builds the overlay. ctx bounds the initial fetch
// only.
func Start(ctx context.Context, config Config) (*Runtime, error) {
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime config: %w", err)
	}
	if config.Context == "" {
		config.Context = settings.NewContextID()
	}
	if len(config.SyncFields) == 0 {
		config.SyncFields = DefaultSyncFields
	}
	if config.Clock == nil {
		config.Clock = clock.Real()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	logger := config.Logger.With("context", string(config.Context))

	runtimeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runtime := &Runtime{
		config: config,
		id:     config.Context,
		client: view.NewClient(config.Socket, logger),
		owned:  &dispose.Group{},
		logger: logger,
		ctx:    runtimeCtx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	// Members are released in reverse order, so done closes last and
	// the decider goroutine has exited before it does.
	runtime.owned.Add(
		dispose.Func(func() { close(runtime.done) }),
		dispose.Func(runtime.stop),
	)

	pageRouter := config.Router
	if pageRouter == nil {
		pageRouter = router.New(logger)
		runtime.owned.Add(pageRouter)
	}
	runtime.tower = router.NewTower(pageRouter)
	runtime.decider = activation.NewDecider(activation.Config{
		Fetcher: runtime.client,
		Sender:  runtime.tower,
		URL:     config.URL,
		Logger:  logger,
	})
	runtime.owned.Add(runtime.tower, runtime.decider)
	runtime.owned.Add(runtime.tower.OnTalkInit(runtime.decide))

	overlayView := runtime.client.FetchView(ctx, OverlayFields, "")
	if config.NewOverlay != nil {
		runtime.owned.Add(config.NewOverlay(overlayView))
	}

	if config.OnDirective != nil {
		runtime.owned.Add(runtime.tower.Listen(config.OnDirective))
	}

	logger.Debug("context started", "url", config.URL)
	return runtime, nil
}

func (r *Runtime) decide() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.deciding.Add(1)
	go func() {
		defer r.deciding.Done()
		r.decider.Run(r.ctx)
	}()
}

func (r *Runtime) stop() {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()
	r.cancel()
	r.deciding.Wait()
}

// DOMReady builds the lifecycle controller over the configuration
// subscription and opens the sentinel channel. When the channel cannot
// be opened nothing would ever tear the context down, so everything is
// released and the error returned.
func (r *Runtime) DOMReady(ctx context.Context) error {
	r.mu.Lock()
	if r.ready {
		r.mu.Unlock()
		return ErrAlreadyReady
	}
	if r.owned.Released() {
		r.mu.Unlock()
		return ErrReleased
	}
	r.ready = true

	observers := []view.Observer{}
	if r.config.OnView != nil {
		observers = append(observers, r.config.OnView)
	}
	r.slot = view.NewSlot(func() *view.ConfigSync {
		return r.client.NewConfigSync(r.id, r.config.SyncFields, observers...)
	})
	r.controller = lifecycle.New(lifecycle.Config{
		Visibility: r.config.Visibility,
		Subscriber: r.slot,
		Clock:      r.config.Clock,
		Debounce:   r.config.Debounce,
		Logger:     r.logger,
	})
	var keyListener dispose.Releaser
	if r.config.NewKeyListener != nil {
		keyListener = r.config.NewKeyListener()
	}
	r.mu.Unlock()

	r.owned.Add(r.slot, r.controller, keyListener)

	channel, err := sentinel.Open(ctx, sentinel.ServiceDialer(r.config.Socket, r.id), r.owned, r.logger)
	if err != nil {
		r.logger.Warn("sentinel unavailable, releasing context", "error", err)
		r.owned.Release()
		return err
	}

	r.mu.Lock()
	r.sentinel = channel
	r.mu.Unlock()
	if r.owned.Released() {
		// Released while the channel was opening.
		channel.Close()
		<-channel.Done()
	}
	return nil
}

// Context returns the context's ID.
func (r *Runtime) Context() settings.ContextID { return r.id }

// Tower returns the context's directive tower.
func (r *Runtime) Tower() *router.Tower { return r.tower }

// Controller returns the lifecycle controller, or nil before DOMReady.
func (r *Runtime) Controller() *lifecycle.Controller {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.controller
}

// Subscription returns the live ConfigSync, or nil when none is held.
func (r *Runtime) Subscription() *view.ConfigSync {
	r.mu.Lock()
	slot := r.slot
	r.mu.Unlock()
	if slot == nil {
		return nil
	}
	return slot.Current()
}

// Done is closed once everything the runtime owns has been released,
// whether by the sentinel's disconnect or by Release.
func (r *Runtime) Done() <-chan struct{} { return r.done }

// Release tears the context down through the sentinel when one is open
// and directly otherwise. Idempotent; safe on nil.
func (r *Runtime) Release() {
	if r == nil {
		return
	}
	r.mu.Lock()
	channel := r.sentinel
	r.mu.Unlock()
	if channel != nil {
		channel.Close()
		<-channel.Done()
	}
	r.owned.Release()
}
