// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the canopyd socket protocol: action names,
// request bodies, response payloads and stream frames. Both the daemon
// (cmd/canopyd) and its clients (lib/view, lib/sentinel, cmd/canopy)
// encode and decode these types with lib/codec.
package schema
