// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package urlcond

import (
	"errors"
	"testing"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		rule    *Rule
		neutral bool
		want    bool
	}{
		{
			name:    "nil rule yields neutral",
			url:     "https://example.com",
			rule:    nil,
			neutral: true,
			want:    true,
		},
		{
			name:    "all parts disabled yields neutral",
			url:     "https://example.com",
			rule:    &Rule{Parts: []Part{{Mode: ModeContains, Value: "example", Disabled: true}}},
			neutral: false,
			want:    false,
		},
		{
			name: "exact",
			url:  "https://example.com/",
			rule: &Rule{Parts: []Part{{Mode: ModeExact, Value: "https://example.com/"}}},
			want: true,
		},
		{
			name: "exact rejects prefix",
			url:  "https://example.com/watch",
			rule: &Rule{Parts: []Part{{Mode: ModeExact, Value: "https://example.com/"}}},
			want: false,
		},
		{
			name: "starts with",
			url:  "https://www.youtube.com/watch?v=1",
			rule: &Rule{Parts: []Part{{Mode: ModeStartsWith, Value: "https://www.youtube.com"}}},
			want: true,
		},
		{
			name: "contains any of",
			url:  "https://music.example.org/track",
			rule: &Rule{Parts: []Part{
				{Mode: ModeContains, Value: "video."},
				{Mode: ModeContains, Value: "music."},
			}},
			want: true,
		},
		{
			name: "block inverts",
			url:  "https://music.example.org/track",
			rule: &Rule{Block: true, Parts: []Part{{Mode: ModeContains, Value: "music."}}},
			want: false,
		},
		{
			name: "block passes unmatched url",
			url:  "https://example.com",
			rule: &Rule{Block: true, Parts: []Part{{Mode: ModeContains, Value: "music."}}},
			want: true,
		},
		{
			name: "regex",
			url:  "https://example.com/live/42",
			rule: &Rule{Parts: []Part{{Mode: ModeRegex, Value: `/live/\d+$`}}},
			want: true,
		},
		{
			name: "regex with lookahead",
			url:  "https://example.com/watch?list=abc",
			rule: &Rule{Parts: []Part{{Mode: ModeRegex, Value: `watch(?=\?list=)`}}},
			want: true,
		},
		{
			name: "invalid regex never matches",
			url:  "https://example.com",
			rule: &Rule{Parts: []Part{{Mode: ModeRegex, Value: `(`}}},
			want: false,
		},
		{
			name: "unknown mode never matches",
			url:  "https://example.com",
			rule: &Rule{Parts: []Part{{Mode: "GLOB", Value: "*"}}},
			want: false,
		},
		{
			name: "disabled part skipped",
			url:  "https://example.com",
			rule: &Rule{Parts: []Part{
				{Mode: ModeContains, Value: "example", Disabled: true},
				{Mode: ModeContains, Value: "other"},
			}},
			want: false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := Match(test.url, test.rule, test.neutral); got != test.want {
				t.Errorf("Match(%q) = %v, want %v", test.url, got, test.want)
			}
		})
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	rule := &Rule{Parts: []Part{
		{Mode: ModeRegex, Value: `^https://(www\.)?example\.(com|org)/`},
		{Mode: ModeContains, Value: "/embed/"},
	}}
	urls := []string{"https://example.org/a", "https://other.net/embed/x", "https://other.net/"}

	first := make([]bool, len(urls))
	for i, url := range urls {
		first[i] = Match(url, rule, false)
	}
	for range 10 {
		for i, url := range urls {
			if got := Match(url, rule, false); got != first[i] {
				t.Fatalf("Match(%q) flipped from %v to %v", url, first[i], got)
			}
		}
	}
}

func TestValidate(t *testing.T) {
	valid := &Rule{Parts: []Part{
		{Mode: ModeExact, Value: "a"},
		{Mode: ModeRegex, Value: `^https?://`},
	}}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() on valid rule: %v", err)
	}

	var nilRule *Rule
	if err := nilRule.Validate(); err != nil {
		t.Fatalf("Validate() on nil rule: %v", err)
	}

	invalid := &Rule{Parts: []Part{
		{Mode: ModeContains, Value: "a"},
		{Mode: ModeRegex, Value: `[`},
	}}
	err := invalid.Validate()
	var partError *PartError
	if !errors.As(err, &partError) {
		t.Fatalf("Validate() error = %v, want *PartError", err)
	}
	if partError.Index != 1 {
		t.Errorf("PartError.Index = %d, want 1", partError.Index)
	}

	unknown := &Rule{Parts: []Part{{Mode: "GLOB"}}}
	if err := unknown.Validate(); err == nil {
		t.Fatal("Validate() accepted unknown mode")
	}
}
