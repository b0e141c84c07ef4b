// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Request/response actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionUnpin  = "unpin"
	ActionStatus = "status"
)

// Stream actions.
const (
	ActionSubscribe = "subscribe"
	ActionConnect   = "connect"
)

// ChannelName is the name a context gives its sentinel connection.
// The daemon rejects connect requests for any other channel.
const ChannelName = "canopy"
