// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package view

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/canopy/lib/schema"
	"github.com/bureau-foundation/canopy/lib/service"
	"github.com/bureau-foundation/canopy/lib/settings"
)

// Client reads and writes configuration through the daemon socket.
type Client struct {
	service *service.Client
	logger  *slog.Logger
}

// NewClient returns a Client using socket. A nil logger discards.
func NewClient(socket *service.Client, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{service: socket, logger: logger}
}

// FetchView returns the current values of fields, resolved for target
// when it is non-empty. Any failure yields the fields' defaults.
func (c *Client) FetchView(ctx context.Context, fields settings.FieldSet, target settings.ContextID) settings.View {
	var view settings.View
	err := c.service.Call(ctx, schema.ActionRead, map[string]any{
		"fields": fields.Strings(),
		"target": target,
	}, &view)
	if err != nil {
		c.logger.Debug("fetch failed, using defaults",
			"fields", fields.Key(),
			"error", err,
		)
		return settings.Defaults(fields)
	}
	// The daemon answers with exactly the requested fields; Restrict
	// also fills any a misbehaving peer left out.
	return view.Restrict(fields)
}

// SetView asks the daemon to merge partial into the record (or into
// target's scope) and returns the fields that changed.
func (c *Client) SetView(ctx context.Context, partial settings.View, target settings.ContextID) (settings.FieldSet, error) {
	var response schema.WriteResponse
	err := c.service.Call(ctx, schema.ActionWrite, map[string]any{
		"values": partial,
		"target": target,
	}, &response)
	if err != nil {
		return nil, fmt.Errorf("writing configuration: %w", err)
	}
	return settings.ParseFieldSet(response.Changed)
}

// Unpin asks the daemon to drop target's scope.
func (c *Client) Unpin(ctx context.Context, target settings.ContextID) error {
	if err := c.service.Call(ctx, schema.ActionUnpin, map[string]any{"target": target}, nil); err != nil {
		return fmt.Errorf("unpinning %s: %w", target, err)
	}
	return nil
}

// Status returns the daemon's status summary.
func (c *Client) Status(ctx context.Context) (schema.Status, error) {
	var status schema.Status
	if err := c.service.Call(ctx, schema.ActionStatus, nil, &status); err != nil {
		return schema.Status{}, fmt.Errorf("querying status: %w", err)
	}
	return status, nil
}
