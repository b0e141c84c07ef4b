// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package store holds the authoritative configuration record.
//
// A [Store] owns one global record and zero or more per-context scopes
// (the private speed context of a pinned tab). Only scoped fields
// (see [settings.Field.Scoped]) can be written into a scope; reads with
// a target resolve scoped fields from the target's scope when it has
// one and everything else from the global record.
//
// Writes are serialized by the store mutex. Each write validates the
// partial view, merges it into a copy of the record, persists the copy
// through the configured [Persister] and only then swaps it in, so a
// failed persist leaves the record untouched and readers never observe
// a torn write.
//
// Subscriptions are signalled after the swap. Signalling never blocks:
// each [Subscription] has a capacity-one notification channel, and a
// pending signal absorbs any further ones. [Subscription.Next] re-reads
// the projection when woken and returns it only when its digest
// differs from the last projection it delivered, so coalesced or
// spurious signals never produce duplicate deliveries.
package store
