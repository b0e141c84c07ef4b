// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package process

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
)

type codedError struct{ code int }

func (e codedError) Error() string { return "coded" }
func (e codedError) ExitCode() int { return e.code }

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantOut  string
	}{
		{name: "nil", err: nil, wantCode: 0, wantOut: ""},
		{name: "plain", err: errors.New("socket gone"), wantCode: 1, wantOut: "error: socket gone\n"},
		{name: "coded", err: codedError{code: 2}, wantCode: 2, wantOut: ""},
		{name: "wrapped coded", err: fmt.Errorf("status: %w", codedError{code: 3}), wantCode: 3, wantOut: ""},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var out bytes.Buffer
			if code := Report(&out, test.err); code != test.wantCode {
				t.Errorf("code = %d, want %d", code, test.wantCode)
			}
			if out.String() != test.wantOut {
				t.Errorf("output = %q, want %q", out.String(), test.wantOut)
			}
		})
	}
}
