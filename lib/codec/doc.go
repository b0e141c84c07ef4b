// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds canopy's single CBOR configuration.
//
// CBOR is used for everything that crosses the daemon socket (requests,
// responses, subscribe and connect stream frames) and for the daemon's
// state file. JSON is used only at the operator edge: CLI output and
// settings import/export.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2), so the
// same projection always produces the same bytes. Subscription change
// detection relies on this: a view is hashed from its encoding, and
// two views with equal values hash equally regardless of map order.
//
// Buffers:
//
//	data, err := codec.Marshal(view)
//	err = codec.Unmarshal(data, &view)
//
// Streams:
//
//	encoder := codec.NewEncoder(conn)
//	decoder := codec.NewDecoder(conn)
//
// Types that are also written as JSON carry `json` tags only; the CBOR
// library falls back to them when `cbor` tags are absent.
package codec
