// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/canopy/lib/codec"
)

// dialTimeout covers only the connect phase.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long Call waits for a response after
// writing the request.
const responseReadTimeout = 45 * time.Second

// maxResponseSize bounds a single response or stream frame.
const maxResponseSize = 1024 * 1024

// ServiceError is returned by Call when the server answers ok=false.
type ServiceError struct {
	Action  string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error on %q: %s", e.Action, e.Message)
}

// Client talks to a canopyd socket. It holds no connection; every Call
// and OpenStream dials afresh.
type Client struct {
	socketPath string
}

// NewClient returns a client for the socket at socketPath.
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// SocketPath returns the socket the client dials.
func (c *Client) SocketPath() string { return c.socketPath }

// Call sends one request and decodes the response data into result
// (when result is non-nil and data is present). The client adds the
// "action" key to fields. Server-side failures are returned as
// *ServiceError; transport failures as plain errors.
func (c *Client) Call(ctx context.Context, action string, fields map[string]any, result any) error {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, ctx.Err())
		}
		return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, err)
	}
	defer conn.Close()

	// Half-close so the server sees a clean EOF after the request.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	// When the read deadline is the context's, the socket can time out
	// before the context's own timer marks it done.
	deadline := time.Now().Add(responseReadTimeout)
	contextDeadline := false
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
		contextDeadline = true
	}
	conn.SetReadDeadline(deadline)

	stop := context.AfterFunc(ctx, func() { conn.SetReadDeadline(time.Now()) })
	defer stop()

	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, ctx.Err())
		}
		if contextDeadline && errors.Is(err, os.ErrDeadlineExceeded) {
			return fmt.Errorf("calling %q on %s: %w", action, c.socketPath, context.DeadlineExceeded)
		}
		return fmt.Errorf("calling %q on %s: reading response: %w", action, c.socketPath, err)
	}

	if !response.OK {
		return &ServiceError{Action: action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding response data for %q: %w", action, err)
		}
	}
	return nil
}

// OpenStream sends a stream request and returns the open stream. The
// caller reads frames with Recv and must Close the stream.
func (c *Client) OpenStream(ctx context.Context, action string, fields map[string]any) (*Stream, error) {
	conn, err := c.dial(ctx, action, fields)
	if err != nil {
		return nil, fmt.Errorf("opening stream %q on %s: %w", action, c.socketPath, err)
	}
	return &Stream{
		conn:    conn,
		decoder: codec.NewDecoder(conn),
	}, nil
}

func (c *Client) dial(ctx context.Context, action string, fields map[string]any) (net.Conn, error) {
	request := make(map[string]any, len(fields)+1)
	for key, value := range fields {
		request[key] = value
	}
	request["action"] = action

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connecting: %w", err)
	}
	conn.SetWriteDeadline(time.Now().Add(dialTimeout))
	if err := codec.NewEncoder(conn).Encode(request); err != nil {
		conn.Close()
		return nil, fmt.Errorf("writing request: %w", err)
	}
	conn.SetWriteDeadline(time.Time{})
	return conn, nil
}

// Stream is the client side of a stream action. Recv must be called
// from one goroutine; Close may be called from any goroutine and
// unblocks a pending Recv.
type Stream struct {
	conn      net.Conn
	decoder   *codec.Decoder
	closeOnce sync.Once
}

// Recv decodes the next frame into frame. It returns io.EOF (or a
// closed-connection error) when the stream ends.
func (s *Stream) Recv(frame any) error {
	return s.decoder.Decode(frame)
}

// Close ends the stream. Idempotent.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.conn.Close() })
	return err
}
