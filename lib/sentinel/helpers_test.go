// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package sentinel

import "log/slog"

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
