// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMapEncodingIsOrderIndependent(t *testing.T) {
	// Go map iteration order is random; the encoding must not be.
	first := map[string]any{"darkTheme": true, "fontSize": 1.1, "language": "detect"}
	second := map[string]any{"language": "detect", "fontSize": 1.1, "darkTheme": true}

	for range 20 {
		a, err := Marshal(first)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		b, err := Marshal(second)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(a, b) {
			t.Fatalf("encodings differ: %x != %x", a, b)
		}
	}
}

func TestDecodeAnyMapUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"speedSlider": map[string]any{"min": 0.5}})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	outer, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type = %T, want map[string]any", decoded)
	}
	if _, ok := outer["speedSlider"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["speedSlider"])
	}
}

func TestStreamFramesDecodeInOrder(t *testing.T) {
	type frame struct {
		Type string `cbor:"type"`
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, kind := range []string{"view", "heartbeat", "view"} {
		if err := encoder.Encode(frame{Type: kind}); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := NewDecoder(&buffer)
	for _, want := range []string{"view", "heartbeat", "view"} {
		var got frame
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if got.Type != want {
			t.Fatalf("frame type = %q, want %q", got.Type, want)
		}
	}
}
