// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"fmt"
	"sort"
)

// Field names one configuration setting.
type Field string

const (
	FieldLanguage              Field = "language"
	FieldDarkTheme             Field = "darkTheme"
	FieldFontSize              Field = "fontSize"
	FieldHideBadge             Field = "hideBadge"
	FieldPinByDefault          Field = "pinByDefault"
	FieldInitialContext        Field = "initialContext"
	FieldGhostMode             Field = "ghostMode"
	FieldGhostModeURLCondition Field = "ghostModeUrlCondition"
	FieldHideMediaView         Field = "hideMediaView"
	FieldFreePitch             Field = "freePitch"
	FieldSpeedSlider           Field = "speedSlider"
	FieldVirtualInput          Field = "virtualInput"
	FieldCircleWidget          Field = "circleWidget"
	FieldCircleWidgetIcon      Field = "circleWidgetIcon"
	FieldHideIndicator         Field = "hideIndicator"
	FieldStaticOverlay         Field = "staticOverlay"
	FieldIndicatorInit         Field = "indicatorInit"

	// Context keys.
	FieldEnabled Field = "enabled"
	FieldSpeed   Field = "speed"
)

// Kind is the value type of a field.
type Kind int

const (
	KindBool Kind = iota
	KindNumber
	KindString
	KindInitialContext
	KindSpeedSlider
	KindCondition
	KindIndicator
)

var kindNames = map[Kind]string{
	KindBool:           "bool",
	KindNumber:         "number",
	KindString:         "string",
	KindInitialContext: "initialContext",
	KindSpeedSlider:    "speedSlider",
	KindCondition:      "condition",
	KindIndicator:      "indicator",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ErrUnknownField is returned for field names outside the closed set.
var ErrUnknownField = errors.New("unknown field")

// ErrInvalidValue is returned when a value does not fit its field.
var ErrInvalidValue = errors.New("invalid value")

// fieldSpec describes one field.
type fieldSpec struct {
	kind   Kind
	scoped bool

	// fallback is the default. Nil for nullable kinds.
	fallback any
}

var registry = map[Field]fieldSpec{
	FieldLanguage:              {kind: KindString, fallback: "detect"},
	FieldDarkTheme:             {kind: KindBool, fallback: false},
	FieldFontSize:              {kind: KindNumber, fallback: 1.0},
	FieldHideBadge:             {kind: KindBool, fallback: false},
	FieldPinByDefault:          {kind: KindBool, fallback: false},
	FieldInitialContext:        {kind: KindInitialContext, fallback: InitialContextPrevious},
	FieldGhostMode:             {kind: KindBool, fallback: false},
	FieldGhostModeURLCondition: {kind: KindCondition},
	FieldHideMediaView:         {kind: KindBool, fallback: false},
	FieldFreePitch:             {kind: KindBool, fallback: false},
	FieldSpeedSlider:           {kind: KindSpeedSlider},
	FieldVirtualInput:          {kind: KindBool, fallback: false},
	FieldCircleWidget:          {kind: KindBool, fallback: false},
	FieldCircleWidgetIcon:      {kind: KindBool, fallback: false},
	FieldHideIndicator:         {kind: KindBool, fallback: false},
	FieldStaticOverlay:         {kind: KindBool, fallback: false},
	FieldIndicatorInit:         {kind: KindIndicator, fallback: IndicatorInit{}},
	FieldEnabled:               {kind: KindBool, scoped: true, fallback: true},
	FieldSpeed:                 {kind: KindNumber, scoped: true, fallback: 1.0},
}

// Known reports whether f belongs to the closed field set.
func (f Field) Known() bool {
	_, ok := registry[f]
	return ok
}

// Kind returns the field's value kind. Panics on unknown fields.
func (f Field) Kind() Kind {
	return f.spec().kind
}

// Scoped reports whether f may be overridden per target context.
func (f Field) Scoped() bool {
	spec, ok := registry[f]
	return ok && spec.scoped
}

// Default returns the field's default value, or nil for unknown and
// nullable fields.
func (f Field) Default() any {
	spec, ok := registry[f]
	if !ok {
		return nil
	}
	return spec.fallback
}

func (f Field) spec() fieldSpec {
	spec, ok := registry[f]
	if !ok {
		panic(fmt.Sprintf("settings: unknown field %q", string(f)))
	}
	return spec
}

// All returns every field, sorted by name.
func All() FieldSet {
	fields := make(FieldSet, 0, len(registry))
	for field := range registry {
		fields = append(fields, field)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })
	return fields
}

// ContextKeys returns the scoped fields, sorted by name.
func ContextKeys() FieldSet {
	var fields FieldSet
	for _, field := range All() {
		if field.Scoped() {
			fields = append(fields, field)
		}
	}
	return fields
}

// Defaults returns a View holding the default of every field in fields.
func Defaults(fields FieldSet) View {
	view := make(View, len(fields))
	for _, field := range fields {
		view[field] = field.Default()
	}
	return view
}
