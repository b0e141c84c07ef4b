// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package router carries directives between the contexts of one page.
//
// A [Router] is page scoped and owns named [Channel]s. Delivery is
// best-effort and at most once: Send drops the directive when nobody
// listens or the channel's queue is full, and nothing is acknowledged
// or retried. Directives on one channel are delivered in the order
// they were sent; there is no ordering between channels.
//
// Callers depend on [Sender], so a reliable implementation can replace
// the best-effort one without touching them.
package router
