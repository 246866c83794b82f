// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package layer

import "fmt"

// maxNameLength bounds mode, scope, and project names. Names appear as
// path segments in reference files on disk; the bound keeps full
// reference paths well under filesystem limits.
const maxNameLength = 64

// allowedNameChars is the set of characters permitted in mode, scope,
// and project names: a-z, 0-9, and the symbols . _ -. The slash is
// deliberately absent so a name can never be confused with the
// reference template's own separators.
var allowedNameChars [256]bool

func init() {
	for c := byte('a'); c <= 'z'; c++ {
		allowedNameChars[c] = true
	}
	for c := byte('0'); c <= '9'; c++ {
		allowedNameChars[c] = true
	}
	allowedNameChars['.'] = true
	allowedNameChars['_'] = true
	allowedNameChars['-'] = true
}

// ValidateName checks a mode, scope, or project name: non-empty, at
// most 64 characters, restricted to a-z, 0-9, ., _, -, and not
// starting with '.' or '-'. The label names the parameter in errors.
func ValidateName(name, label string) error {
	if name == "" {
		return fmt.Errorf("%s is empty", label)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%s %q is %d characters, maximum is %d", label, name, len(name), maxNameLength)
	}
	for i := 0; i < len(name); i++ {
		if !allowedNameChars[name[i]] {
			return fmt.Errorf("%s %q: invalid character %q at position %d (allowed: a-z, 0-9, ., _, -)", label, name, name[i], i)
		}
	}
	if name[0] == '.' {
		return fmt.Errorf("%s %q starts with '.' (hidden file)", label, name)
	}
	if name[0] == '-' {
		return fmt.Errorf("%s %q starts with '-' (flag-ambiguous)", label, name)
	}
	return nil
}
