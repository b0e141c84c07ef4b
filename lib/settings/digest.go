// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/canopy/lib/codec"
)

// Digest is a BLAKE3 hash of a view's deterministic CBOR encoding.
// Views with equal fields and values have equal digests.
type Digest [32]byte

// DigestOf hashes v. Every value in a View has a CBOR encoding, so an
// encoding failure means the view holds a value no Normalize call
// produced; that is a programming error and panics.
func DigestOf(v View) Digest {
	data, err := codec.Marshal(v)
	if err != nil {
		panic("settings: encoding view for digest: " + err.Error())
	}
	return Digest(blake3.Sum256(data))
}
