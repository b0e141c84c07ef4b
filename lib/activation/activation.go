// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package activation decides, once per context start, whether the page
// runs in ghost mode, and tells the page-level context through the
// directive channel.
package activation

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/bureau-foundation/canopy/lib/router"
	"github.com/bureau-foundation/canopy/lib/settings"
	"github.com/bureau-foundation/canopy/lib/urlcond"
)

// ForcedSites are activated regardless of the user's settings. A URL
// matches when it contains one of them.
var ForcedSites = []string{"v.qq.com", "wetv.vip", "web.whatsapp.com"}

// Fields are the settings a decision reads.
var Fields = settings.MustFieldSet(settings.FieldGhostMode)

// ConditionFields are the settings Minimal reads.
var ConditionFields = settings.MustFieldSet(settings.FieldGhostModeURLCondition)

// Forced reports whether url is on the forced-sites list.
func Forced(url string) bool {
	for _, site := range ForcedSites {
		if strings.Contains(url, site) {
			return true
		}
	}
	return false
}

// Decide reports whether a context at url activates ghost mode: the
// global flag is on or the site is forced. The URL condition plays no
// part here.
func Decide(url string, view settings.View) bool {
	return Forced(url) || view.Bool(settings.FieldGhostMode)
}

// Minimal reports whether the minimal UI applies to url once ghost mode
// is active, according to the user's ghostModeUrlCondition. No
// condition, or one with every part disabled, applies everywhere.
func Minimal(url string, view settings.View) bool {
	return urlcond.Match(url, view.GhostCondition(), true)
}

// Fetcher reads a projection; view.Client implements it.
type Fetcher interface {
	FetchView(ctx context.Context, fields settings.FieldSet, target settings.ContextID) settings.View
}

// Config holds a Decider's dependencies.
type Config struct {
	Fetcher Fetcher
	Sender  router.Sender
	URL     string
	Logger  *slog.Logger
}

// Decider makes one activation decision per context initialization.
type Decider struct {
	fetcher Fetcher
	sender  router.Sender
	url     string
	logger  *slog.Logger

	once sync.Once

	mu       sync.Mutex
	cancel   context.CancelFunc
	released bool
}

// NewDecider returns a Decider for the context at config.URL.
func NewDecider(config Config) *Decider {
	if config.Logger == nil {
		config.Logger = slog.New(slog.DiscardHandler)
	}
	return &Decider{
		fetcher: config.Fetcher,
		sender:  config.Sender,
		url:     config.URL,
		logger:  config.Logger,
	}
}

// Run fetches the ghost settings, decides and sends ActivateGhost when
// the decision is positive. Only the first call does anything; later
// calls, and calls after Release, return false. The result reports
// whether the directive was handed to the sender. Later changes to the
// settings are not re-evaluated.
func (d *Decider) Run(ctx context.Context) bool {
	sent := false
	d.once.Do(func() {
		d.mu.Lock()
		if d.released {
			d.mu.Unlock()
			return
		}
		ctx, d.cancel = context.WithCancel(ctx)
		d.mu.Unlock()

		view := d.fetcher.FetchView(ctx, Fields, "")

		d.mu.Lock()
		released := d.released
		d.cancel()
		d.mu.Unlock()
		if released {
			return
		}
		if !Decide(d.url, view) {
			d.logger.Debug("ghost mode not activated", "url", d.url)
			return
		}
		sent = d.sender.Send(router.ActivateGhost)
		d.logger.Debug("ghost mode activation sent", "url", d.url, "accepted", sent)
	})
	return sent
}

// Release abandons a pending decision. Idempotent.
func (d *Decider) Release() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	if d.cancel != nil {
		d.cancel()
	}
}
