// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/google/renameio"
)

// EncodeFile marshals v to CBOR and atomically replaces the file at
// path with the result. The new content is written to a temporary file
// in the same directory and renamed into place, so concurrent readers
// see either the old file or the complete new one, never a partial
// write.
func EncodeFile(path string, v any) error {
	data, err := Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := renameio.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// DecodeFile reads the CBOR file at path into v. A missing file
// returns fs.ErrNotExist unwrapped so callers can treat absence as an
// empty state.
func DecodeFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}
