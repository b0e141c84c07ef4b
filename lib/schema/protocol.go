// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"time"

	"github.com/bureau-foundation/canopy/lib/settings"
)

// ReadRequest asks for the current values of Fields. A non-empty Target
// resolves scoped fields from that context's scope.
type ReadRequest struct {
	Fields []string           `cbor:"fields"`
	Target settings.ContextID `cbor:"target,omitempty"`
}

// WriteRequest merges Values into the record (Target empty) or into
// Target's scope. A nil value resets its field.
type WriteRequest struct {
	Values settings.View      `cbor:"values"`
	Target settings.ContextID `cbor:"target,omitempty"`
}

// WriteResponse lists the fields whose value changed.
type WriteResponse struct {
	Changed []string `cbor:"changed,omitempty"`
}

// UnpinRequest drops Target's scope.
type UnpinRequest struct {
	Target settings.ContextID `cbor:"target"`
}

// SubscribeRequest opens a subscribe stream for Fields on behalf of
// Context.
type SubscribeRequest struct {
	Context settings.ContextID `cbor:"context"`
	Fields  []string           `cbor:"fields"`
}

// ConnectRequest opens the sentinel channel of Context.
type ConnectRequest struct {
	Context settings.ContextID `cbor:"context"`
	Channel string             `cbor:"channel"`
}

// Frame types on stream connections.
const (
	// FrameView carries a full projection (subscribe streams). The
	// first frame of a subscribe stream is always a view.
	FrameView = "view"

	// FrameConnected is the first frame of a connect stream.
	FrameConnected = "connected"

	// FrameHeartbeat is a liveness probe with no payload.
	FrameHeartbeat = "heartbeat"

	// FrameError is terminal: the server closes the stream after it.
	FrameError = "error"
)

// Frame is one value on a stream connection.
type Frame struct {
	Type    string        `cbor:"type"`
	View    settings.View `cbor:"view,omitempty"`
	Message string        `cbor:"message,omitempty"`
}

// Status is the payload of the status action.
type Status struct {
	Version       string    `cbor:"version" json:"version"`
	StartedAt     time.Time `cbor:"started_at" json:"started_at"`
	Contexts      int       `cbor:"contexts" json:"contexts"`
	Subscriptions int       `cbor:"subscriptions" json:"subscriptions"`
	Scopes        int       `cbor:"scopes" json:"scopes"`
}
