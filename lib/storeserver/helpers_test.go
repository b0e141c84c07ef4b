// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package storeserver

import "log/slog"

func slogDiscard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
