// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package mergeval

import (
	"fmt"
	"path"
	"strings"
)

// Policy designates which workspace paths are strict: on strict paths
// a same-type scalar change between layers is a conflict requiring
// review instead of silently resolving last-writer-wins. All other
// paths auto-merge. The empty Policy marks nothing strict.
type Policy struct {
	patterns []string
}

// NewPolicy validates the glob patterns and returns a Policy over
// them. Pattern syntax follows path.Match with the addition of ** for
// matching across directory boundaries.
func NewPolicy(patterns []string) (Policy, error) {
	for _, pattern := range patterns {
		if pattern == "" {
			return Policy{}, fmt.Errorf("strict path pattern is empty")
		}
		if strings.HasPrefix(pattern, "/") {
			return Policy{}, fmt.Errorf("strict path pattern %q must be workspace-relative (no leading /)", pattern)
		}
		// Probe each glob segment so malformed character classes are
		// rejected at configuration time rather than silently never
		// matching.
		for _, segment := range strings.Split(pattern, "/") {
			if segment == "**" {
				continue
			}
			if _, err := path.Match(segment, "probe"); err != nil {
				return Policy{}, fmt.Errorf("strict path pattern %q: %v", pattern, err)
			}
		}
	}
	return Policy{patterns: patterns}, nil
}

// Strict reports whether the path matches any strict pattern.
func (p Policy) Strict(filePath string) bool {
	for _, pattern := range p.patterns {
		if matchPattern(pattern, filePath) {
			return true
		}
	}
	return false
}

// Patterns returns the configured patterns.
func (p Policy) Patterns() []string { return p.patterns }

// matchPattern checks whether a workspace-relative path matches a glob
// pattern using hierarchical conventions:
//
//   - Exact match: "app.json" matches only "app.json"
//   - Single-segment wildcard: "conf/*" matches "conf/db.yaml" but not
//     "conf/prod/db.yaml"
//   - Recursive wildcard: "conf/**" matches everything under conf/
//   - Universal: "**" matches any path
//   - Interior recursive: "conf/**/secrets.toml" matches at any depth
//   - Character wildcards: "?" matches a single non-slash character
//
// Wildcards * and ? work in all positions, including around **. The
// single-segment wildcard "*" does not match "/", the standard
// path.Match behavior. Returns false for malformed patterns rather
// than propagating errors; NewPolicy rejects them up front.
func matchPattern(pattern, filePath string) bool {
	if pattern == "**" {
		return true
	}

	// No ** in the pattern: path.Match handles * and ? directly.
	if !strings.Contains(pattern, "**") {
		matched, err := path.Match(pattern, filePath)
		return err == nil && matched
	}

	// Suffix: "conf/**" matches the prefix, then anything after.
	if strings.HasSuffix(pattern, "/**") {
		prefix := pattern[:len(pattern)-3]
		if matchGlob(prefix, filePath) {
			return true
		}
		return hasMatchingPrefix(prefix, filePath)
	}

	// Prefix: "**/secrets.toml" matches anything before the suffix.
	if strings.HasPrefix(pattern, "**/") {
		suffix := pattern[3:]
		if matchGlob(suffix, filePath) {
			return true
		}
		return hasMatchingSuffix(suffix, filePath)
	}

	// Interior: "conf/**/secrets.toml". Split on the first /**/, match
	// prefix and suffix independently.
	separatorIndex := strings.Index(pattern, "/**/")
	if separatorIndex >= 0 {
		prefix := pattern[:separatorIndex]
		suffix := pattern[separatorIndex+4:]

		// Zero-segment case: prefix and suffix are adjacent.
		if matchGlob(prefix+"/"+suffix, filePath) {
			return true
		}

		prefixDepth := strings.Count(prefix, "/") + 1
		suffixDepth := strings.Count(suffix, "/") + 1
		segments := strings.Split(filePath, "/")
		if len(segments) < prefixDepth+1+suffixDepth {
			return false
		}
		if !matchGlob(prefix, strings.Join(segments[:prefixDepth], "/")) {
			return false
		}
		if !matchGlob(suffix, strings.Join(segments[len(segments)-suffixDepth:], "/")) {
			return false
		}
		for _, segment := range segments[prefixDepth : len(segments)-suffixDepth] {
			if segment == "" {
				return false
			}
		}
		return true
	}

	// Multiple ** separators are not supported.
	return false
}

func matchGlob(pattern, s string) bool {
	matched, err := path.Match(pattern, s)
	return err == nil && matched
}

func hasMatchingPrefix(pattern, filePath string) bool {
	depth := strings.Count(pattern, "/") + 1
	segments := strings.SplitN(filePath, "/", depth+1)
	if len(segments) <= depth {
		return false
	}
	return matchGlob(pattern, strings.Join(segments[:depth], "/"))
}

func hasMatchingSuffix(pattern, filePath string) bool {
	depth := strings.Count(pattern, "/") + 1
	segments := strings.Split(filePath, "/")
	if len(segments) <= depth {
		return false
	}
	return matchGlob(pattern, strings.Join(segments[len(segments)-depth:], "/"))
}
