// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import "github.com/google/uuid"

// ContextID identifies one script context. It is generated when the
// context starts and lives exactly as long as the context does. As a
// read or write target it names the private scope of that context's
// tab.
type ContextID string

// NewContextID returns a fresh random ContextID.
func NewContextID() ContextID {
	return ContextID(uuid.NewString())
}
