// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared helpers for canopy tests.
//
// [SocketDir] returns a short directory under /tmp for daemon sockets;
// t.TempDir() paths can exceed the 108-byte sun_path limit.
//
// [RequireReceive] and [RequireClosed] wrap the select-with-timeout
// safety valve so tests that wait on stream goroutines never hang. They
// are the only place tests use wall-clock timeouts; timers under test
// run on clock.Fake.
//
// All helpers fail the test with t.Fatalf instead of returning errors.
package testutil
