// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"

	"github.com/bureau-foundation/canopy/lib/settings"
)

// ErrNotScoped is returned when a write names a target context but
// includes a field that has no per-context scope.
var ErrNotScoped = errors.New("field cannot be scoped to a context")

// Config holds the dependencies of a Store.
type Config struct {
	// Persister saves every accepted write. Required.
	Persister Persister

	// Logger receives write and subscription events. Nil discards.
	Logger *slog.Logger
}

// Store is the authoritative configuration record. It is safe for
// concurrent use.
type Store struct {
	persister Persister
	logger    *slog.Logger

	mu     sync.Mutex
	global settings.View
	scopes map[settings.ContextID]settings.View

	// subscriptions is keyed by owner, then by field set key. At most
	// one subscription exists per (owner, field set).
	subscriptions map[settings.ContextID]map[string]*Subscription
}

// Stats is a point-in-time summary of the store's subscriptions.
type Stats struct {
	Owners        int `json:"owners"`
	Subscriptions int `json:"subscriptions"`
	Scopes        int `json:"scopes"`
}

// New loads the record through config.Persister and returns a Store.
func New(config Config) (*Store, error) {
	if config.Persister == nil {
		return nil, errors.New("store: Persister is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	snapshot, err := config.Persister.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration record: %w", err)
	}
	global := snapshot.Global.Clone()
	if global == nil {
		global = settings.View{}
	}
	if err := global.Validate(); err != nil {
		return nil, fmt.Errorf("loaded global record: %w", err)
	}
	scopes := make(map[settings.ContextID]settings.View, len(snapshot.Scopes))
	for id, scope := range snapshot.Scopes {
		scope = scope.Clone()
		if err := scope.Validate(); err != nil {
			return nil, fmt.Errorf("loaded scope %s: %w", id, err)
		}
		for field := range scope {
			if !field.Scoped() {
				return nil, fmt.Errorf("loaded scope %s: %w: %s", id, ErrNotScoped, field)
			}
		}
		scopes[id] = scope
	}

	return &Store{
		persister:     config.Persister,
		logger:        logger,
		global:        global,
		scopes:        scopes,
		subscriptions: make(map[settings.ContextID]map[string]*Subscription),
	}, nil
}

// Read returns the current values of exactly fields. Fields never
// written resolve to their defaults. With a non-empty target that has
// a scope, scoped fields come from that scope.
func (s *Store) Read(fields settings.FieldSet, target settings.ContextID) settings.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked(fields, target)
}

func (s *Store) resolveLocked(fields settings.FieldSet, target settings.ContextID) settings.View {
	scope := s.scopes[target]
	view := make(settings.View, len(fields))
	for _, field := range fields {
		view[field] = resolve(s.global, scope, field)
	}
	return view.Clone()
}

func resolve(global, scope settings.View, field settings.Field) any {
	if field.Scoped() {
		if value, ok := scope[field]; ok {
			return value
		}
	}
	if value, ok := global[field]; ok {
		return value
	}
	return field.Default()
}

// Write validates partial, merges it into the record and persists the
// result. A nil value resets its field. With a non-empty target every
// field must be scoped; the values go into that target's scope and a
// nil value removes the override. Returns the fields whose resolved
// value changed.
func (s *Store) Write(partial settings.View, target settings.ContextID) (settings.FieldSet, error) {
	normalized := make(settings.View, len(partial))
	for field, value := range partial {
		value, err := settings.Normalize(field, value)
		if err != nil {
			return nil, err
		}
		if target != "" && !field.Scoped() {
			return nil, fmt.Errorf("%w: %s", ErrNotScoped, field)
		}
		normalized[field] = value
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	global := s.global
	scopes := s.scopes
	if target == "" {
		global = merge(s.global, normalized)
	} else {
		scopes = make(map[settings.ContextID]settings.View, len(s.scopes)+1)
		for id, scope := range s.scopes {
			scopes[id] = scope
		}
		scope := merge(s.scopes[target], normalized)
		if len(scope) == 0 {
			delete(scopes, target)
		} else {
			scopes[target] = scope
		}
	}

	changed := s.changedLocked(normalized, global, scopes, target)
	if len(changed) == 0 {
		return nil, nil
	}

	if err := s.persister.Save(Snapshot{Global: global, Scopes: scopes}); err != nil {
		return nil, fmt.Errorf("persisting configuration record: %w", err)
	}
	s.global = global
	s.scopes = scopes

	signalled := s.signalLocked(changed, target)
	s.logger.Debug("configuration written",
		"fields", changed.Strings(),
		"target", string(target),
		"signalled", signalled,
	)
	return changed, nil
}

// merge returns a copy of base with partial applied.
func merge(base, partial settings.View) settings.View {
	merged := make(settings.View, len(base)+len(partial))
	for field, value := range base {
		merged[field] = value
	}
	for field, value := range partial {
		if value == nil {
			delete(merged, field)
		} else {
			merged[field] = value
		}
	}
	return merged
}

// changedLocked returns the written fields whose resolved value differs
// between the current record and the candidate one. For a global write
// a field counts as changed if it changed for the global view; scopes
// that override it are left to digest dedupe in their subscriptions.
func (s *Store) changedLocked(partial, global settings.View, scopes map[settings.ContextID]settings.View, target settings.ContextID) settings.FieldSet {
	var changed []settings.Field
	for field := range partial {
		before := resolve(s.global, s.scopes[target], field)
		after := resolve(global, scopes[target], field)
		if !reflect.DeepEqual(before, after) {
			changed = append(changed, field)
		}
	}
	set, _ := settings.NewFieldSet(changed...)
	return set
}

// signalLocked wakes every subscription whose fields intersect changed
// and which observes target. A global change is observed by everyone.
func (s *Store) signalLocked(changed settings.FieldSet, target settings.ContextID) int {
	signalled := 0
	for owner, byKey := range s.subscriptions {
		if target != "" && owner != target {
			continue
		}
		for _, subscription := range byKey {
			if subscription.fields.Intersects(changed) {
				subscription.signal()
				signalled++
			}
		}
	}
	return signalled
}

// Unpin drops target's scope. Subscriptions owned by target are
// signalled for the fields the scope overrode. Unpinning a target
// without a scope is a no-op.
func (s *Store) Unpin(target settings.ContextID) error {
	if target == "" {
		return errors.New("unpin requires a target context")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	scope, ok := s.scopes[target]
	if !ok {
		return nil
	}
	scopes := make(map[settings.ContextID]settings.View, len(s.scopes))
	for id, existing := range s.scopes {
		if id != target {
			scopes[id] = existing
		}
	}
	if err := s.persister.Save(Snapshot{Global: s.global, Scopes: scopes}); err != nil {
		return fmt.Errorf("persisting configuration record: %w", err)
	}
	s.scopes = scopes

	s.signalLocked(scope.Fields(), target)
	s.logger.Debug("context unpinned", "target", string(target))
	return nil
}

// Subscribe registers a subscription for fields on behalf of owner.
// The owner's scope is the subscription's read target. A previous
// subscription for the same owner and field set is released first.
func (s *Store) Subscribe(owner settings.ContextID, fields settings.FieldSet) *Subscription {
	subscription := &Subscription{
		store:  s,
		owner:  owner,
		fields: fields,
		key:    fields.Key(),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.subscriptions[owner]
	if byKey == nil {
		byKey = make(map[string]*Subscription)
		s.subscriptions[owner] = byKey
	}
	if previous, ok := byKey[subscription.key]; ok {
		previous.closeLocked()
		s.logger.Debug("subscription replaced",
			"owner", string(owner),
			"fields", subscription.key,
		)
	}
	byKey[subscription.key] = subscription
	return subscription
}

// ReleaseContext releases every subscription owned by owner and returns
// how many there were.
func (s *Store) ReleaseContext(owner settings.ContextID) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	byKey := s.subscriptions[owner]
	for _, subscription := range byKey {
		subscription.closeLocked()
	}
	delete(s.subscriptions, owner)
	return len(byKey)
}

// Stats returns subscription and scope counts.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Stats{Owners: len(s.subscriptions), Scopes: len(s.scopes)}
	for _, byKey := range s.subscriptions {
		stats.Subscriptions += len(byKey)
	}
	return stats
}

// remove drops subscription from the registry if it is still the
// registered one for its (owner, field set).
func (s *Store) remove(subscription *Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	subscription.closeLocked()
	byKey := s.subscriptions[subscription.owner]
	if byKey[subscription.key] != subscription {
		return
	}
	delete(byKey, subscription.key)
	if len(byKey) == 0 {
		delete(s.subscriptions, subscription.owner)
	}
}
