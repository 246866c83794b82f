// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for testability. Production code
// injects Real(); tests inject a Fake with deterministic control.
// Commit timestamps and staging timestamps must be stable under test,
// so anything that records a time takes a Clock instead of calling
// time.Now directly.
package clock

import "time"

// Clock supplies the current time.
type Clock interface {
	// Now returns the current time.
	Now() time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
