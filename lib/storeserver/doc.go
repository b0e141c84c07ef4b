// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package storeserver exposes a [store.Store] over the canopyd socket
// protocol (see lib/schema).
//
// Request/response actions (read, write, unpin, status) are thin
// wrappers around the store. The two stream actions carry the
// synchronization discipline:
//
//   - subscribe registers a store subscription for (context, fields)
//     and writes its projections as view frames. The first frame is
//     the projection at registration time, so the client's initial
//     fetch is atomic with registration. Heartbeat frames follow at a
//     fixed interval so a vanished client is detected by a failed
//     write even when no configuration changes.
//   - connect is a context's sentinel channel. When the last connect
//     stream of a context ends, for whatever reason, every
//     subscription the context still owns is released.
package storeserver
