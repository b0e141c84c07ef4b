// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the Unix socket protocol between canopyd and
// its clients.
//
// Every message is a single CBOR value; CBOR is self-delimiting, so no
// framing layer is needed. A request is a map with an "action" key plus
// action-specific fields. Two kinds of action exist:
//
//   - Request/response actions (registered with [SocketServer.Handle]):
//     one request per connection, answered with a [Response] envelope
//     {ok, error, data}, after which the server closes the connection.
//   - Stream actions (registered with [SocketServer.HandleStream]): the
//     handler owns the connection after the request is decoded and
//     writes a sequence of frames until it returns. Stream handlers
//     return when the peer disconnects or the server shuts down.
//
// [Client] is the matching client: [Client.Call] for request/response
// actions and [Client.OpenStream] for streams.
package service
