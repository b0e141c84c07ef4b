// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle gates a context's live subscription on page
// visibility.
//
// A [Controller] is a three-state machine driven by visibility changes
// and its own debounce timer:
//
//	state \ event   hidden                 visible               timer fired
//	Active          HiddenPending (arm)    Active                Active (stale)
//	HiddenPending   HiddenPending (rearm)  Active (cancel)       Hidden (release)
//	Hidden          Hidden                 Active (ensure)       Hidden (stale)
//
// Hiding the page does not release the subscription immediately; only
// a hidden period that outlasts the debounce interval does. Short
// hidden/visible flaps, such as a full-screen toggle, keep the
// subscription alive. Each armed timer carries a generation number and
// a firing whose generation is no longer current is discarded.
package lifecycle
