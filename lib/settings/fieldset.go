// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"fmt"
	"sort"
	"strings"
)

// FieldSet is a sorted, duplicate-free list of known fields. Two
// requests for the same fields in any order produce equal sets with
// equal keys.
type FieldSet []Field

// NewFieldSet normalizes fields into a FieldSet. Unknown fields are
// rejected with ErrUnknownField.
func NewFieldSet(fields ...Field) (FieldSet, error) {
	seen := make(map[Field]struct{}, len(fields))
	set := make(FieldSet, 0, len(fields))
	for _, field := range fields {
		if !field.Known() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownField, string(field))
		}
		if _, duplicate := seen[field]; duplicate {
			continue
		}
		seen[field] = struct{}{}
		set = append(set, field)
	}
	sort.Slice(set, func(i, j int) bool { return set[i] < set[j] })
	return set, nil
}

// MustFieldSet is NewFieldSet for field lists fixed at compile time.
// Panics on unknown fields.
func MustFieldSet(fields ...Field) FieldSet {
	set, err := NewFieldSet(fields...)
	if err != nil {
		panic("settings: " + err.Error())
	}
	return set
}

// ParseFieldSet converts wire or command-line names into a FieldSet.
func ParseFieldSet(names []string) (FieldSet, error) {
	fields := make([]Field, len(names))
	for i, name := range names {
		fields[i] = Field(name)
	}
	return NewFieldSet(fields...)
}

// Key identifies the set; equal sets have equal keys.
func (s FieldSet) Key() string {
	names := make([]string, len(s))
	for i, field := range s {
		names[i] = string(field)
	}
	return strings.Join(names, ",")
}

// Contains reports whether field is in the set.
func (s FieldSet) Contains(field Field) bool {
	index := sort.Search(len(s), func(i int) bool { return s[i] >= field })
	return index < len(s) && s[index] == field
}

// Intersects reports whether any of fields is in the set.
func (s FieldSet) Intersects(fields []Field) bool {
	for _, field := range fields {
		if s.Contains(field) {
			return true
		}
	}
	return false
}

// Strings returns the field names.
func (s FieldSet) Strings() []string {
	names := make([]string, len(s))
	for i, field := range s {
		names[i] = string(field)
	}
	return names
}
