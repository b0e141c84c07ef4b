// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package settings

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/jsonc"
)

// ParseExport reads a settings export: a JSON object keyed by field
// name, extended with // and /* */ comments and trailing commas. With
// skipUnknown, keys outside the closed field set are dropped instead of
// rejected; exports from newer versions carry settings canopy does not
// synchronize (keybinds, per-site rules).
func ParseExport(data []byte, skipUnknown bool) (View, error) {
	stripped := jsonc.ToJSON(data)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(stripped, &raw); err != nil {
		return nil, fmt.Errorf("parsing settings export: %w", err)
	}
	view, err := decodeFields(raw, json.Unmarshal, isJSONNull, skipUnknown)
	if err != nil {
		return nil, fmt.Errorf("parsing settings export: %w", err)
	}
	return view, nil
}
