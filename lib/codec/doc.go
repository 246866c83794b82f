// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides strata's standard CBOR encoding configuration
// and atomic state-file helpers.
//
// Strata uses two serialization layers with a clear boundary:
//
//   - User-facing configuration documents (JSON, JSONC, YAML, TOML)
//     cross into the merge engine through lib/format and never appear
//     here.
//   - CBOR for internal durable state: object store trees and commits,
//     the staging index, the paused marker, and name descriptors.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items.
// Same logical data always produces identical bytes, which is what
// makes tree and commit objects content-addressable.
//
// For buffer-oriented operations:
//
//	data, err := codec.Marshal(value)
//	err = codec.Unmarshal(data, &value)
//
// Durable single-file state goes through EncodeFile/DecodeFile, which
// write the full new content off-path and atomically swap it into
// place so a crash mid-write never leaves a partial file.
//
// # Struct Tag Rules
//
// The struct tag on a type documents its serialization format:
//
//   - `cbor` tag: the type is only ever serialized as CBOR (object
//     store records, staging index, paused marker).
//   - `json` tag: the type may be serialized as both JSON and CBOR.
//     fxamacker/cbor v2 reads `json` tags as fallback when `cbor` tags
//     are absent, so a single `json` tag controls field naming for
//     both. Used for types that also appear in CLI --json output.
//
// Never use both `cbor` and `json` tags on the same field.
package codec
