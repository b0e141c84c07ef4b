// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package view is the context side of configuration access.
//
// [Client.FetchView] is a one-shot read that never fails: when the
// daemon cannot be reached or answers with an error, the caller gets
// the defaults of the requested fields. [ConfigSync] keeps a cached
// projection current over a subscribe stream and calls its observers
// after every change. [Slot] holds at most one ConfigSync for a
// context so repeated visibility transitions reuse it.
//
// Contexts never mutate the record directly; [Client.SetView] asks the
// daemon to perform the write.
package view
