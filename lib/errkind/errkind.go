// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package errkind classifies errors crossing the boundary between the
// core and its callers. Every failure a command can surface carries
// exactly one Kind, so the CLI can choose exit codes and retry advice
// without parsing message text.
package errkind

import (
	"errors"
	"fmt"
)

// Kind classifies an error for programmatic handling.
type Kind string

const (
	// NotInitialized indicates no store or activation context exists at
	// the expected location. The caller should run init first.
	NotInitialized Kind = "not_initialized"

	// NotFound indicates a referenced path, layer, or reference does not
	// exist. Retrying with the same parameters will not help.
	NotFound Kind = "not_found"

	// Config indicates an invalid flag or parameter combination, or
	// invalid tool configuration. The caller should fix the input.
	Config Kind = "config"

	// NoActiveMode indicates an operation requested mode placement while
	// no mode is active.
	NoActiveMode Kind = "no_active_mode"

	// MergeConflict indicates a strict-path or text merge produced a
	// conflict that requires explicit resolution.
	MergeConflict Kind = "merge_conflict"

	// StagingFailed indicates a per-file staging precondition failed,
	// such as a staged blob missing from the store at commit time.
	StagingFailed Kind = "staging_failed"

	// CommitConflict indicates a reference moved between read and
	// compare-and-swap. The transaction was rolled back; the caller
	// should retry the commit.
	CommitConflict Kind = "commit_conflict"

	// IO indicates a filesystem failure outside the object store.
	IO Kind = "io"

	// ObjectStore indicates a failure inside the object store itself:
	// corrupt object, hash mismatch, unreadable reference.
	ObjectStore Kind = "object_store"

	// Parse indicates a serialization format error: unparseable JSON,
	// YAML, TOML, or a malformed internal record.
	Parse Kind = "parse"
)

// Error is a kind-tagged error. It wraps an inner error, preserving the
// chain for errors.Is and errors.As while adding the Kind for the CLI
// layer. Use the kind-specific constructors rather than building Error
// directly.
type Error struct {
	Kind Kind
	Err  error
}

// Error returns the underlying message. The kind is not included in the
// string; it travels separately to the CLI layer.
func (e *Error) Error() string { return e.Err.Error() }

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether retrying the same operation may succeed.
// Only lost reference races qualify.
func (e *Error) Retryable() bool { return e.Kind == CommitConflict }

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a kind. A nil err returns nil. If
// err already carries a kind, the existing kind is preserved and the
// message is extended, so the first classification wins.
func Wrap(kind Kind, err error, context string) error {
	if err == nil {
		return nil
	}
	var tagged *Error
	if errors.As(err, &tagged) {
		return fmt.Errorf("%s: %w", context, err)
	}
	return &Error{Kind: kind, Err: fmt.Errorf("%s: %w", context, err)}
}

// KindOf extracts the kind from an error chain. Untagged errors report
// IO, the conservative default for failures that reached the caller
// without classification.
func KindOf(err error) Kind {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind
	}
	return IO
}

// Is reports whether the error chain carries the given kind.
func Is(err error, kind Kind) bool {
	var tagged *Error
	if errors.As(err, &tagged) {
		return tagged.Kind == kind
	}
	return false
}

// NotInitializedf creates a NotInitialized error.
func NotInitializedf(format string, args ...any) *Error { return New(NotInitialized, format, args...) }

// NotFoundf creates a NotFound error.
func NotFoundf(format string, args ...any) *Error { return New(NotFound, format, args...) }

// Configf creates a Config error.
func Configf(format string, args ...any) *Error { return New(Config, format, args...) }

// NoActiveModef creates a NoActiveMode error.
func NoActiveModef(format string, args ...any) *Error { return New(NoActiveMode, format, args...) }

// MergeConflictf creates a MergeConflict error.
func MergeConflictf(format string, args ...any) *Error { return New(MergeConflict, format, args...) }

// StagingFailedf creates a StagingFailed error.
func StagingFailedf(format string, args ...any) *Error { return New(StagingFailed, format, args...) }

// CommitConflictf creates a retryable CommitConflict error.
func CommitConflictf(format string, args ...any) *Error { return New(CommitConflict, format, args...) }

// IOf creates an IO error.
func IOf(format string, args ...any) *Error { return New(IO, format, args...) }

// ObjectStoref creates an ObjectStore error.
func ObjectStoref(format string, args ...any) *Error { return New(ObjectStore, format, args...) }

// Parsef creates a Parse error.
func Parsef(format string, args ...any) *Error { return New(Parse, format, args...) }
