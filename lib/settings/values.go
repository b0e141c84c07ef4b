// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"math"

	"github.com/bureau-foundation/canopy/lib/urlcond"
)

// InitialContext chooses which speed context a newly pinned tab starts
// from.
type InitialContext int

const (
	InitialContextPrevious InitialContext = iota
	InitialContextGlobal
	InitialContextNew
	InitialContextCustom
)

// SpeedSlider is the min/max range of the popup speed slider.
type SpeedSlider struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// IndicatorInit holds the initial appearance of the on-page indicator.
// The indicator itself is rendered elsewhere; canopy only stores and
// forwards these values.
type IndicatorInit struct {
	Scaling  float64 `json:"scaling,omitempty"`
	Duration int     `json:"duration,omitempty"`
	Position string  `json:"position,omitempty"`
}

// Normalize converts value to the canonical Go type for field and
// checks it. A nil value is returned as nil: it means "reset to
// default" in a write.
func Normalize(field Field, value any) (any, error) {
	spec, ok := registry[field]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
	}
	if value == nil {
		return nil, nil
	}

	normalized, err := normalizeKind(spec.kind, value)
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidValue, field, err)
	}
	if field == FieldSpeed && normalized.(float64) <= 0 {
		return nil, fmt.Errorf("%w for %s: speed must be positive", ErrInvalidValue, field)
	}
	return normalized, nil
}

func normalizeKind(kind Kind, value any) (any, error) {
	switch kind {
	case KindBool:
		if typed, ok := value.(bool); ok {
			return typed, nil
		}
	case KindNumber:
		number, ok := toFloat(value)
		if !ok {
			break
		}
		if math.IsNaN(number) || math.IsInf(number, 0) {
			return nil, fmt.Errorf("number must be finite")
		}
		return number, nil
	case KindString:
		if typed, ok := value.(string); ok {
			return typed, nil
		}
	case KindInitialContext:
		var raw float64
		switch typed := value.(type) {
		case InitialContext:
			raw = float64(typed)
		default:
			number, ok := toFloat(value)
			if !ok {
				return nil, fmt.Errorf("expected initial context, got %T", value)
			}
			raw = number
		}
		if raw != math.Trunc(raw) || raw < float64(InitialContextPrevious) || raw > float64(InitialContextCustom) {
			return nil, fmt.Errorf("initial context %v out of range", raw)
		}
		return InitialContext(raw), nil
	case KindSpeedSlider:
		var slider SpeedSlider
		switch typed := value.(type) {
		case SpeedSlider:
			slider = typed
		case *SpeedSlider:
			if typed == nil {
				return nil, nil
			}
			slider = *typed
		default:
			return nil, fmt.Errorf("expected speed slider, got %T", value)
		}
		if !(slider.Min > 0 && slider.Min < slider.Max) {
			return nil, fmt.Errorf("speed slider needs 0 < min < max, got %v..%v", slider.Min, slider.Max)
		}
		return &slider, nil
	case KindCondition:
		var rule urlcond.Rule
		switch typed := value.(type) {
		case urlcond.Rule:
			rule = typed
		case *urlcond.Rule:
			if typed == nil {
				return nil, nil
			}
			rule = *typed
		default:
			return nil, fmt.Errorf("expected condition rule, got %T", value)
		}
		if err := rule.Validate(); err != nil {
			return nil, err
		}
		rule.Parts = append([]urlcond.Part(nil), rule.Parts...)
		return &rule, nil
	case KindIndicator:
		switch typed := value.(type) {
		case IndicatorInit:
			return typed, nil
		case *IndicatorInit:
			if typed == nil {
				return nil, nil
			}
			return *typed, nil
		}
	}
	return nil, fmt.Errorf("expected %s, got %T", kind, value)
}

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case float64:
		return typed, true
	case float32:
		return float64(typed), true
	case int:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case uint64:
		return float64(typed), true
	}
	return 0, false
}
