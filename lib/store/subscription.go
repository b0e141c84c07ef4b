// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"

	"github.com/bureau-foundation/canopy/lib/settings"
)

// ErrReleased is returned by Next after the subscription is released,
// whether by its owner, by a replacing Subscribe or by ReleaseContext.
var ErrReleased = errors.New("subscription released")

// Subscription delivers projections of one field set to one owner.
// Next must be called from a single goroutine; Release may be called
// from any goroutine, any number of times.
type Subscription struct {
	store  *Store
	owner  settings.ContextID
	fields settings.FieldSet
	key    string

	notify chan struct{}

	// done is closed under the store mutex; closed tracks that so
	// closeLocked stays idempotent.
	done   chan struct{}
	closed bool

	// Owned by the Next goroutine.
	delivered bool
	last      settings.Digest
}

// Owner returns the owning context.
func (s *Subscription) Owner() settings.ContextID { return s.owner }

// Fields returns the subscribed field set.
func (s *Subscription) Fields() settings.FieldSet { return s.fields }

// Done is closed when the subscription is released.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Next returns the next projection. The first call returns the current
// projection immediately. Later calls block until the projection
// differs from the last one returned, ctx is done, or the subscription
// is released.
func (s *Subscription) Next(ctx context.Context) (settings.View, error) {
	for {
		if s.delivered {
			select {
			case <-s.done:
				return nil, ErrReleased
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-s.notify:
			}
		}

		select {
		case <-s.done:
			return nil, ErrReleased
		default:
		}

		view := s.store.Read(s.fields, s.owner)
		digest := settings.DigestOf(view)
		if s.delivered && digest == s.last {
			continue
		}
		s.delivered = true
		s.last = digest
		return view, nil
	}
}

// Release unregisters the subscription. Idempotent.
func (s *Subscription) Release() {
	if s == nil {
		return
	}
	s.store.remove(s)
}

// signal wakes Next without blocking. A pending signal absorbs this
// one.
func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
}
