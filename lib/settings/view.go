// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/canopy/lib/codec"
	"github.com/bureau-foundation/canopy/lib/urlcond"
)

// View is a projection of the configuration record onto a set of
// fields. Views handed out by the store are never mutated afterwards;
// updates arrive as new Views.
type View map[Field]any

// Has reports whether the view carries field.
func (v View) Has(field Field) bool {
	_, ok := v[field]
	return ok
}

// Fields returns the view's fields as a normalized set.
func (v View) Fields() FieldSet {
	fields := make([]Field, 0, len(v))
	for field := range v {
		fields = append(fields, field)
	}
	set, _ := NewFieldSet(fields...)
	return set
}

// Bool returns a KindBool field, falling back to its default.
func (v View) Bool(field Field) bool {
	if typed, ok := v[field].(bool); ok {
		return typed
	}
	typed, _ := field.Default().(bool)
	return typed
}

// Number returns a KindNumber field, falling back to its default.
func (v View) Number(field Field) float64 {
	if typed, ok := v[field].(float64); ok {
		return typed
	}
	typed, _ := field.Default().(float64)
	return typed
}

// String returns a KindString field, falling back to its default.
func (v View) String(field Field) string {
	if typed, ok := v[field].(string); ok {
		return typed
	}
	typed, _ := field.Default().(string)
	return typed
}

// InitialContext returns the initialContext field.
func (v View) InitialContext() InitialContext {
	if typed, ok := v[FieldInitialContext].(InitialContext); ok {
		return typed
	}
	return InitialContextPrevious
}

// SpeedSlider returns the speedSlider field, nil when unset.
func (v View) SpeedSlider() *SpeedSlider {
	slider, _ := v[FieldSpeedSlider].(*SpeedSlider)
	return slider
}

// GhostCondition returns the ghostModeUrlCondition field, nil when
// unset.
func (v View) GhostCondition() *urlcond.Rule {
	rule, _ := v[FieldGhostModeURLCondition].(*urlcond.Rule)
	return rule
}

// Indicator returns the indicatorInit field.
func (v View) Indicator() IndicatorInit {
	indicator, _ := v[FieldIndicatorInit].(IndicatorInit)
	return indicator
}

// Restrict returns a new view holding exactly fields, taking values
// from v and defaults for fields v lacks.
func (v View) Restrict(fields FieldSet) View {
	restricted := make(View, len(fields))
	for _, field := range fields {
		if value, ok := v[field]; ok {
			restricted[field] = cloneValue(value)
		} else {
			restricted[field] = field.Default()
		}
	}
	return restricted
}

// Clone returns a deep copy of v.
func (v View) Clone() View {
	if v == nil {
		return nil
	}
	clone := make(View, len(v))
	for field, value := range v {
		clone[field] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case *SpeedSlider:
		if typed == nil {
			return nil
		}
		copied := *typed
		return &copied
	case *urlcond.Rule:
		if typed == nil {
			return nil
		}
		copied := *typed
		copied.Parts = append([]urlcond.Part(nil), typed.Parts...)
		return &copied
	}
	return value
}

// Validate normalizes every value in v in place and reports the first
// unknown field or invalid value.
func (v View) Validate() error {
	for field, value := range v {
		normalized, err := Normalize(field, value)
		if err != nil {
			return err
		}
		v[field] = normalized
	}
	return nil
}

// UnmarshalCBOR decodes a view, converting each value to its field's
// canonical type.
func (v *View) UnmarshalCBOR(data []byte) error {
	var raw map[string]codec.RawMessage
	if err := codec.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding view: %w", err)
	}
	view, err := decodeFields(raw, codec.Unmarshal, isCBORNull, false)
	if err != nil {
		return err
	}
	*v = view
	return nil
}

// UnmarshalJSON is the JSON counterpart of UnmarshalCBOR.
func (v *View) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decoding view: %w", err)
	}
	view, err := decodeFields(raw, json.Unmarshal, isJSONNull, false)
	if err != nil {
		return err
	}
	*v = view
	return nil
}

func isCBORNull(data []byte) bool {
	// 0xf6 is null, 0xf7 is undefined.
	return len(data) == 1 && (data[0] == 0xf6 || data[0] == 0xf7)
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func decodeFields[R ~[]byte](raw map[string]R, unmarshal func([]byte, any) error, isNull func([]byte) bool, skipUnknown bool) (View, error) {
	view := make(View, len(raw))
	for name, data := range raw {
		field := Field(name)
		if !field.Known() {
			if skipUnknown {
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
		}
		value, err := decodeValue(field, []byte(data), unmarshal, isNull)
		if err != nil {
			return nil, err
		}
		view[field] = value
	}
	return view, nil
}

func decodeValue(field Field, data []byte, unmarshal func([]byte, any) error, isNull func([]byte) bool) (any, error) {
	if isNull(data) {
		return nil, nil
	}

	var decoded any
	var err error
	switch field.Kind() {
	case KindBool:
		var value bool
		err = unmarshal(data, &value)
		decoded = value
	case KindNumber, KindInitialContext:
		var value float64
		err = unmarshal(data, &value)
		decoded = value
	case KindString:
		var value string
		err = unmarshal(data, &value)
		decoded = value
	case KindSpeedSlider:
		var value SpeedSlider
		err = unmarshal(data, &value)
		decoded = value
	case KindCondition:
		var value urlcond.Rule
		err = unmarshal(data, &value)
		decoded = value
	case KindIndicator:
		var value IndicatorInit
		err = unmarshal(data, &value)
		decoded = value
	}
	if err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidValue, field, err)
	}
	return Normalize(field, decoded)
}
