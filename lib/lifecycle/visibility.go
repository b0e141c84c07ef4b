// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package lifecycle

import (
	"sync"

	"github.com/bureau-foundation/canopy/lib/dispose"
)

// Switch is a settable Visibility. The attach command drives one from
// stdin; tests drive one directly.
type Switch struct {
	mu        sync.Mutex
	hidden    bool
	listeners []*switchListener
}

type switchListener struct {
	f func(hidden bool)
}

// NewSwitch returns a Switch with the given initial visibility.
func NewSwitch(hidden bool) *Switch {
	return &Switch{hidden: hidden}
}

// Hidden reports the current visibility.
func (s *Switch) Hidden() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hidden
}

// OnChange registers f for later changes.
func (s *Switch) OnChange(f func(hidden bool)) dispose.Releaser {
	entry := &switchListener{f: f}
	s.mu.Lock()
	s.listeners = append(s.listeners, entry)
	s.mu.Unlock()
	return dispose.Func(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, existing := range s.listeners {
			if existing == entry {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	})
}

// Set changes the visibility and notifies listeners, in registration
// order, if it differs from the current one.
func (s *Switch) Set(hidden bool) {
	s.mu.Lock()
	if s.hidden == hidden {
		s.mu.Unlock()
		return
	}
	s.hidden = hidden
	listeners := make([]*switchListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, listener := range listeners {
		listener.f(hidden)
	}
}

// Listeners returns the number of registered listeners.
func (s *Switch) Listeners() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.listeners)
}
