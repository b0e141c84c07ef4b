// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispose provides idempotent release handles.
//
// Every subsystem a context owns (config sync slot, lifecycle
// controller, overlay, key listener, directive listeners) is handed to
// its owner as a Releaser. Release may be called any number of times,
// from any goroutine, including on a nil handle or one whose subsystem
// never finished initializing; only the first call has an effect.
package dispose

import (
	"reflect"
	"sync"
)

// Releaser is implemented by anything that holds resources until
// released.
type Releaser interface {
	Release()
}

// Func wraps f in a handle that runs it at most once. A nil f yields a
// handle whose Release does nothing.
func Func(f func()) *Handle {
	return &Handle{release: f}
}

// Handle runs its release function at most once.
type Handle struct {
	once    sync.Once
	release func()
}

// Release runs the release function on the first call. Safe on a nil
// handle.
func (h *Handle) Release() {
	if h == nil {
		return
	}
	h.once.Do(func() {
		if h.release != nil {
			h.release()
		}
	})
}

// Group releases a set of members together, in reverse order of
// addition. Members added after the group was released are released
// immediately.
type Group struct {
	mu       sync.Mutex
	members  []Releaser
	released bool
}

// Add registers members with the group. Nil members are ignored.
func (g *Group) Add(members ...Releaser) {
	g.mu.Lock()
	if !g.released {
		for _, member := range members {
			if !isNil(member) {
				g.members = append(g.members, member)
			}
		}
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()

	for _, member := range members {
		if !isNil(member) {
			member.Release()
		}
	}
}

// Release releases every member once. Later calls do nothing.
func (g *Group) Release() {
	g.mu.Lock()
	if g.released {
		g.mu.Unlock()
		return
	}
	g.released = true
	members := g.members
	g.members = nil
	g.mu.Unlock()

	for i := len(members) - 1; i >= 0; i-- {
		members[i].Release()
	}
}

// Released reports whether Release has been called.
func (g *Group) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

// isNil also catches typed nil pointers stored in the interface, such
// as an overlay that was never constructed.
func isNil(member Releaser) bool {
	if member == nil {
		return true
	}
	value := reflect.ValueOf(member)
	return value.Kind() == reflect.Pointer && value.IsNil()
}
