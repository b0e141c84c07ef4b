// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock is the time source for every timer in canopy.
//
// The lifecycle controller's debounce, the daemon's stream heartbeats
// and the status report's start time all read time through a Clock.
// Production wiring passes Real(). Tests pass Fake(), which stands
// still until Advance is called, so a 1500 ms debounce can be
// exercised without sleeping:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	controller := lifecycle.New(visibility, slot, lifecycle.Options{Clock: fake})
//	visibility.SetHidden(true)
//	fake.Advance(1500 * time.Millisecond) // release fires here
//
// AfterFunc callbacks on a FakeClock run synchronously inside Advance,
// on the goroutine that called Advance.
package clock
