// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import "sync"

// Slot holds at most one ConfigSync. It is the subscription a
// lifecycle controller ensures and releases.
type Slot struct {
	factory func() *ConfigSync

	mu      sync.Mutex
	current *ConfigSync
}

// NewSlot returns an empty slot that builds instances with factory.
func NewSlot(factory func() *ConfigSync) *Slot {
	return &Slot{factory: factory}
}

// Ensure creates the ConfigSync if the slot is empty. With one already
// present it does nothing.
func (s *Slot) Ensure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.current = s.factory()
	}
}

// Current returns the held instance, or nil.
func (s *Slot) Current() *ConfigSync {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Release releases the held instance and empties the slot.
// Idempotent.
func (s *Slot) Release() {
	s.mu.Lock()
	current := s.current
	s.current = nil
	s.mu.Unlock()
	current.Release()
}
