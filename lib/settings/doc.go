// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package settings defines the closed set of configuration fields and
// the projection type contexts read them through.
//
// Every field has a kind, a default and a scope flag. The daemon's
// ConfigurationRecord holds a value for every field; contexts only
// ever see a View, a map holding exactly the fields they asked for.
// Values in a View are always the canonical Go type for their kind:
//
//	bool            KindBool
//	float64         KindNumber
//	string          KindString
//	InitialContext  KindInitialContext
//	*SpeedSlider    KindSpeedSlider (nil when unset)
//	*urlcond.Rule   KindCondition (nil when unset)
//	IndicatorInit   KindIndicator
//
// A nil value in a View passed to a write resets the field to its
// default.
//
// Scoped fields ("context keys") may be overridden per target context,
// the per-tab private context a user pins. All other fields are global.
package settings
