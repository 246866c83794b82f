// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package format converts configuration documents between their
// serialized forms (JSON, JSONC, YAML, TOML) and the merge engine's
// value representation. The merge engine never sees bytes and this
// package never merges; the conversion boundary is the whole job.
package format

import (
	"bytes"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/strata-config/strata/lib/mergeval"
)

// Format classifies a workspace path's content for merging.
type Format uint8

const (
	// JSON documents parse to structured values.
	JSON Format = iota + 1

	// JSONC is JSON with comments. Comments are stripped at parse;
	// re-encoding produces plain JSON.
	JSONC

	// YAML documents parse to structured values.
	YAML

	// TOML documents parse to structured values.
	TOML

	// Text is non-structured UTF-8 content, merged line-wise by the
	// three-way text merge.
	Text

	// Binary is opaque content, replaced wholesale, never merged.
	Binary
)

var formatNames = [...]string{
	JSON:   "json",
	JSONC:  "jsonc",
	YAML:   "yaml",
	TOML:   "toml",
	Text:   "text",
	Binary: "binary",
}

// String returns the format name.
func (f Format) String() string {
	if int(f) < len(formatNames) && formatNames[f] != "" {
		return formatNames[f]
	}
	return "unknown"
}

// Structured reports whether content of this format folds through the
// merge engine.
func (f Format) Structured() bool {
	return f == JSON || f == JSONC || f == YAML || f == TOML
}

// Detect classifies a path's content. The extension decides structured
// formats; everything else is Text when it is valid UTF-8 without NUL
// bytes, Binary otherwise.
func Detect(path string, content []byte) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return JSON
	case ".jsonc":
		return JSONC
	case ".yaml", ".yml":
		return YAML
	case ".toml":
		return TOML
	}
	if utf8.Valid(content) && !bytes.ContainsRune(content, 0) {
		return Text
	}
	return Binary
}

// Parse converts a structured document into a merge value.
func Parse(f Format, content []byte) (mergeval.Value, error) {
	switch f {
	case JSON:
		return parseJSON(content, false)
	case JSONC:
		return parseJSON(content, true)
	case YAML:
		return parseYAML(content)
	case TOML:
		return parseTOML(content)
	default:
		return mergeval.Value{}, errNotStructured(f)
	}
}

// Encode renders a merge value back into document bytes. JSONC encodes
// as plain JSON: comments do not survive the merge representation.
func Encode(f Format, v mergeval.Value) ([]byte, error) {
	switch f {
	case JSON, JSONC:
		return encodeJSON(v)
	case YAML:
		return encodeYAML(v)
	case TOML:
		return encodeTOML(v)
	default:
		return nil, errNotStructured(f)
	}
}
