// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"errors"
	"io/fs"
	"path/filepath"
	"testing"
)

// sampleRecord is a representative internal state record using cbor
// struct tags (the convention for purely-internal types).
type sampleRecord struct {
	Path    string `cbor:"path"`
	Layer   string `cbor:"layer,omitempty"`
	Version int    `cbor:"version"`
}

func TestMarshalUnmarshalRoundtrip(t *testing.T) {
	original := sampleRecord{
		Path:    "services/web.json",
		Layer:   "layers/mode/dev",
		Version: 1,
	}

	data, err := Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("Marshal produced empty output")
	}

	var decoded sampleRecord
	if err := Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded != original {
		t.Errorf("roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	record := map[string]any{
		"zeta":  1,
		"alpha": "x",
		"mid":   []any{"a", "b"},
	}

	first, err := Marshal(record)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	second, err := Marshal(record)
	if err != nil {
		t.Fatalf("second Marshal: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("deterministic encoding violated: %x != %x", first, second)
	}
}

func TestUnmarshalAnyUsesStringKeys(t *testing.T) {
	data, err := Marshal(map[string]any{"outer": map[string]any{"inner": 1}})
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
	if _, ok := outer["outer"].(map[string]any); !ok {
		t.Fatalf("nested type = %T, want map[string]any", outer["outer"])
	}
}

func TestEncodeDecodeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")
	original := sampleRecord{Path: "a.json", Version: 3}

	if err := EncodeFile(path, original); err != nil {
		t.Fatalf("EncodeFile: %v", err)
	}

	var decoded sampleRecord
	if err := DecodeFile(path, &decoded); err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if decoded != original {
		t.Errorf("file roundtrip mismatch: got %+v, want %+v", decoded, original)
	}
}

func TestDecodeFileMissing(t *testing.T) {
	var decoded sampleRecord
	err := DecodeFile(filepath.Join(t.TempDir(), "absent.cbor"), &decoded)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("DecodeFile on missing file = %v, want fs.ErrNotExist", err)
	}
}

func TestEncodeFileReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.cbor")

	if err := EncodeFile(path, sampleRecord{Path: "old", Version: 1}); err != nil {
		t.Fatalf("first EncodeFile: %v", err)
	}
	if err := EncodeFile(path, sampleRecord{Path: "new", Version: 2}); err != nil {
		t.Fatalf("second EncodeFile: %v", err)
	}

	var decoded sampleRecord
	if err := DecodeFile(path, &decoded); err != nil {
		t.Fatalf("DecodeFile: %v", err)
	}
	if decoded.Path != "new" || decoded.Version != 2 {
		t.Errorf("got %+v, want the replacement content", decoded)
	}
}
