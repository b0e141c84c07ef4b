// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides the entrypoint error handler for canopy
// binaries: the one place outside a command's own output that writes
// to stderr before or after the structured logger exists.
package process
