// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/canopy/lib/codec"
	"github.com/bureau-foundation/canopy/lib/urlcond"
)

func TestFieldSetNormalizes(t *testing.T) {
	set, err := NewFieldSet(FieldFontSize, FieldDarkTheme, FieldFontSize)
	if err != nil {
		t.Fatalf("NewFieldSet: %v", err)
	}
	want := FieldSet{FieldDarkTheme, FieldFontSize}
	if diff := cmp.Diff(want, set); diff != "" {
		t.Fatalf("NewFieldSet mismatch (-want +got):\n%s", diff)
	}

	other := MustFieldSet(FieldDarkTheme, FieldFontSize)
	if set.Key() != other.Key() {
		t.Fatalf("keys differ: %q vs %q", set.Key(), other.Key())
	}
	if !set.Contains(FieldFontSize) || set.Contains(FieldGhostMode) {
		t.Fatalf("Contains gave wrong answers for %v", set)
	}
	if !set.Intersects([]Field{FieldGhostMode, FieldDarkTheme}) {
		t.Fatal("Intersects missed darkTheme")
	}
	if set.Intersects([]Field{FieldGhostMode}) {
		t.Fatal("Intersects matched a field outside the set")
	}
}

func TestFieldSetRejectsUnknown(t *testing.T) {
	_, err := ParseFieldSet([]string{"darkTheme", "keybinds"})
	if !errors.Is(err, ErrUnknownField) {
		t.Fatalf("ParseFieldSet error = %v, want ErrUnknownField", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		field   Field
		value   any
		want    any
		wantErr error
	}{
		{name: "bool", field: FieldDarkTheme, value: true, want: true},
		{name: "int to number", field: FieldFontSize, value: 1, want: 1.0},
		{name: "nil resets", field: FieldDarkTheme, value: nil, want: nil},
		{name: "bool for number", field: FieldFontSize, value: true, wantErr: ErrInvalidValue},
		{name: "infinite number", field: FieldFontSize, value: math.Inf(1), wantErr: ErrInvalidValue},
		{name: "zero speed", field: FieldSpeed, value: 0.0, wantErr: ErrInvalidValue},
		{name: "initial context from number", field: FieldInitialContext, value: 2.0, want: InitialContextNew},
		{name: "initial context out of range", field: FieldInitialContext, value: 9, wantErr: ErrInvalidValue},
		{
			name:  "speed slider value to pointer",
			field: FieldSpeedSlider,
			value: SpeedSlider{Min: 0.25, Max: 4},
			want:  &SpeedSlider{Min: 0.25, Max: 4},
		},
		{
			name:    "inverted speed slider",
			field:   FieldSpeedSlider,
			value:   SpeedSlider{Min: 4, Max: 0.25},
			wantErr: ErrInvalidValue,
		},
		{
			name:    "condition with bad regex",
			field:   FieldGhostModeURLCondition,
			value:   urlcond.Rule{Parts: []urlcond.Part{{Mode: urlcond.ModeRegex, Value: "("}}},
			wantErr: ErrInvalidValue,
		},
		{name: "unknown field", field: "keybinds", value: true, wantErr: ErrUnknownField},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := Normalize(test.field, test.value)
			if test.wantErr != nil {
				if !errors.Is(err, test.wantErr) {
					t.Fatalf("Normalize error = %v, want %v", err, test.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize: %v", err)
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("Normalize mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestViewCBORDecodesCanonicalTypes(t *testing.T) {
	original := View{
		FieldDarkTheme:             true,
		FieldFontSize:              1.1,
		FieldLanguage:              "de",
		FieldInitialContext:        InitialContextCustom,
		FieldSpeedSlider:           &SpeedSlider{Min: 0.5, Max: 3},
		FieldGhostModeURLCondition: &urlcond.Rule{Block: true, Parts: []urlcond.Part{{Mode: urlcond.ModeContains, Value: "example"}}},
		FieldIndicatorInit:         IndicatorInit{Scaling: 1.5, Duration: 900},
	}

	data, err := codec.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded View
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(original, decoded); diff != "" {
		t.Fatalf("decoded view mismatch (-want +got):\n%s", diff)
	}
}

func TestViewCBORNullMeansReset(t *testing.T) {
	data, err := codec.Marshal(map[string]any{"speedSlider": nil, "darkTheme": nil})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded View
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, field := range []Field{FieldSpeedSlider, FieldDarkTheme} {
		value, present := decoded[field]
		if !present || value != nil {
			t.Errorf("%s = %v (present %v), want explicit nil", field, value, present)
		}
	}
}

func TestViewCBORRejectsUnknownField(t *testing.T) {
	data, err := codec.Marshal(map[string]any{"keybinds": []string{}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var decoded View
	if err := codec.Unmarshal(data, &decoded); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("Unmarshal error = %v, want ErrUnknownField", err)
	}
}

func TestAccessorsFallBackToDefaults(t *testing.T) {
	view := View{}
	if view.Bool(FieldEnabled) != true {
		t.Error("enabled should default to true")
	}
	if view.Number(FieldFontSize) != 1.0 {
		t.Errorf("fontSize = %v, want 1.0", view.Number(FieldFontSize))
	}
	if view.String(FieldLanguage) != "detect" {
		t.Errorf("language = %q, want detect", view.String(FieldLanguage))
	}
	if view.SpeedSlider() != nil || view.GhostCondition() != nil {
		t.Error("nullable fields should default to nil")
	}
}

func TestRestrictKeepsExactlyRequestedFields(t *testing.T) {
	full := View{FieldDarkTheme: true, FieldGhostMode: true, FieldFontSize: 1.05}
	restricted := full.Restrict(MustFieldSet(FieldDarkTheme, FieldHideBadge))

	want := View{FieldDarkTheme: true, FieldHideBadge: false}
	if diff := cmp.Diff(want, restricted); diff != "" {
		t.Fatalf("Restrict mismatch (-want +got):\n%s", diff)
	}
}

func TestCloneIsDeep(t *testing.T) {
	original := View{FieldSpeedSlider: &SpeedSlider{Min: 0.5, Max: 2}}
	clone := original.Clone()
	clone.SpeedSlider().Max = 8
	if original.SpeedSlider().Max != 2 {
		t.Fatal("mutating the clone changed the original")
	}
}

func TestDigest(t *testing.T) {
	a := View{FieldDarkTheme: true, FieldFontSize: 1.0}
	b := View{FieldFontSize: 1.0, FieldDarkTheme: true}
	c := View{FieldDarkTheme: false, FieldFontSize: 1.0}

	if DigestOf(a) != DigestOf(b) {
		t.Fatal("equal views have different digests")
	}
	if DigestOf(a) == DigestOf(c) {
		t.Fatal("different views share a digest")
	}
}

func TestParseExport(t *testing.T) {
	data := []byte(`{
		// exported from the options page
		"darkTheme": true,
		"fontSize": 1.05,
		"speedSlider": {"min": 0.5, "max": 4},
		"keybinds": [], /* not synchronized */
	}`)

	if _, err := ParseExport(data, false); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("strict ParseExport error = %v, want ErrUnknownField", err)
	}

	view, err := ParseExport(data, true)
	if err != nil {
		t.Fatalf("ParseExport: %v", err)
	}
	want := View{
		FieldDarkTheme:   true,
		FieldFontSize:    1.05,
		FieldSpeedSlider: &SpeedSlider{Min: 0.5, Max: 4},
	}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Fatalf("ParseExport mismatch (-want +got):\n%s", diff)
	}
}

func TestNewContextIDUnique(t *testing.T) {
	if NewContextID() == NewContextID() {
		t.Fatal("two context IDs collided")
	}
}
