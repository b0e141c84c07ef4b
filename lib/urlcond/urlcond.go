// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package urlcond matches URLs against user-authored condition rules.
//
// A Rule is an ordered list of parts. Each enabled part tests the URL
// with one matching mode; the rule matches when any enabled part
// matches, and Block inverts the result. A rule with no enabled parts
// has no opinion and yields the caller's neutral value.
//
// Match is pure: no caching, no logging, the same inputs always give
// the same answer.
package urlcond

import (
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Mode selects how a Part's value is compared with the URL.
type Mode string

const (
	// ModeExact matches when the URL equals the value.
	ModeExact Mode = "EXACT"

	// ModeStartsWith matches when the URL begins with the value.
	ModeStartsWith Mode = "STARTS_WITH"

	// ModeContains matches when the URL contains the value.
	ModeContains Mode = "CONTAINS"

	// ModeRegex matches when the value, read as an ECMAScript regular
	// expression, finds a match anywhere in the URL. Rules are
	// authored in the options page with browser regex syntax, which
	// RE2 cannot parse in full (lookaround, backreferences).
	ModeRegex Mode = "REGEX"
)

// regexTimeout bounds a single REGEX evaluation. A pattern that needs
// longer is treated as not matching.
const regexTimeout = 50 * time.Millisecond

// Rule is a condition over URLs.
type Rule struct {
	Parts []Part `json:"parts"`

	// Block inverts the any-of result: the rule matches URLs that no
	// enabled part matches.
	Block bool `json:"block,omitempty"`
}

// Part is one pattern within a Rule.
type Part struct {
	Mode     Mode   `json:"type"`
	Value    string `json:"value"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Match evaluates rule against url. A nil rule, or one whose parts are
// all disabled, returns neutral.
func Match(url string, rule *Rule, neutral bool) bool {
	if rule == nil {
		return neutral
	}

	enabled := 0
	matched := false
	for _, part := range rule.Parts {
		if part.Disabled {
			continue
		}
		enabled++
		if part.matches(url) {
			matched = true
			break
		}
	}
	if enabled == 0 {
		return neutral
	}
	if rule.Block {
		return !matched
	}
	return matched
}

func (p Part) matches(url string) bool {
	switch p.Mode {
	case ModeExact:
		return url == p.Value
	case ModeStartsWith:
		return strings.HasPrefix(url, p.Value)
	case ModeContains:
		return strings.Contains(url, p.Value)
	case ModeRegex:
		if p.Value == "" {
			return false
		}
		expression, err := regexp2.Compile(p.Value, regexp2.ECMAScript)
		if err != nil {
			return false
		}
		expression.MatchTimeout = regexTimeout
		found, err := expression.MatchString(url)
		return err == nil && found
	default:
		return false
	}
}

// Validate reports the first part whose mode is unknown or whose REGEX
// value does not compile. Match tolerates both; Validate lets writers
// reject them before they reach the store.
func (r *Rule) Validate() error {
	if r == nil {
		return nil
	}
	for index, part := range r.Parts {
		switch part.Mode {
		case ModeExact, ModeStartsWith, ModeContains:
		case ModeRegex:
			if _, err := regexp2.Compile(part.Value, regexp2.ECMAScript); err != nil {
				return &PartError{Index: index, Reason: err.Error()}
			}
		default:
			return &PartError{Index: index, Reason: "unknown mode " + string(part.Mode)}
		}
	}
	return nil
}

// PartError identifies an invalid part of a Rule.
type PartError struct {
	Index  int
	Reason string
}

func (e *PartError) Error() string {
	return fmt.Sprintf("condition part %d: %s", e.Index, e.Reason)
}
