// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

// Package textmerge implements line-based diff and three-way merge
// for plain-text files. Layered text files that cannot be merged
// structurally go through here: edits against a common ancestor are
// combined hunk by hunk, and regions both sides changed differently
// become conflict blocks labelled with the contributing layers.
package textmerge

import (
	"strings"
)

// Result is the outcome of a three-way merge. When Conflicts is zero,
// Content is the clean merge; otherwise Content carries git-style
// conflict markers for each conflicted region.
type Result struct {
	Content   []byte
	Conflicts int
}

// Merge performs a three-way line merge of ours and theirs against
// their common ancestor base. ourLabel and theirLabel name the two
// sides in conflict markers; callers pass layer identities.
func Merge(base, ours, theirs []byte, ourLabel, theirLabel string) Result {
	baseLines := splitLines(base)
	ourLines := splitLines(ours)
	theirLines := splitLines(theirs)

	mapOurs := matchMap(baseLines, ourLines)
	mapTheirs := matchMap(baseLines, theirLines)

	var out []string
	conflicts := 0
	basePos, oursPos, theirsPos := 0, 0, 0

	emitRegion := func(baseHi, oursHi, theirsHi int) {
		baseSeg := baseLines[basePos:baseHi]
		ourSeg := ourLines[oursPos:oursHi]
		theirSeg := theirLines[theirsPos:theirsHi]

		switch {
		case linesEqual(ourSeg, baseSeg):
			out = append(out, theirSeg...)
		case linesEqual(theirSeg, baseSeg):
			out = append(out, ourSeg...)
		case linesEqual(ourSeg, theirSeg):
			out = append(out, ourSeg...)
		default:
			conflicts++
			out = append(out, "<<<<<<< "+ourLabel+"\n")
			out = append(out, withFinalNewline(ourSeg)...)
			out = append(out, "=======\n")
			out = append(out, withFinalNewline(theirSeg)...)
			out = append(out, ">>>>>>> "+theirLabel+"\n")
		}
		basePos, oursPos, theirsPos = baseHi, oursHi, theirsHi
	}

	// Anchor lines are those matched in both pairings. Between two
	// anchors each side owns a replacement for the same base region,
	// which is the unit of automatic resolution.
	for k := 0; k < len(baseLines); k++ {
		ourIdx, inOurs := mapOurs[k]
		theirIdx, inTheirs := mapTheirs[k]
		if !inOurs || !inTheirs {
			continue
		}
		emitRegion(k, ourIdx, theirIdx)
		out = append(out, baseLines[k])
		basePos, oursPos, theirsPos = k+1, ourIdx+1, theirIdx+1
	}
	emitRegion(len(baseLines), len(ourLines), len(theirLines))

	return Result{Content: []byte(strings.Join(out, "")), Conflicts: conflicts}
}

// matchMap returns the base-to-side line index mapping for the
// longest common subsequence of the two line slices.
func matchMap(base, side []string) map[int]int {
	pairs := lcsPairs(base, side)
	m := make(map[int]int, len(pairs))
	for _, p := range pairs {
		m[p[0]] = p[1]
	}
	return m
}

// splitLines splits content into lines that keep their terminating
// newline, so joining the slices reproduces the input byte for byte.
// A final line without a newline is preserved as-is.
func splitLines(content []byte) []string {
	if len(content) == 0 {
		return nil
	}
	lines := strings.SplitAfter(string(content), "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// withFinalNewline terminates the last line of a conflict segment so
// the following marker starts on its own line.
func withFinalNewline(segment []string) []string {
	if len(segment) == 0 {
		return segment
	}
	last := segment[len(segment)-1]
	if strings.HasSuffix(last, "\n") {
		return segment
	}
	fixed := make([]string, len(segment))
	copy(fixed, segment)
	fixed[len(fixed)-1] = last + "\n"
	return fixed
}

// lcsPairs returns the index pairs of a longest common subsequence of
// a and b, ascending on both sides. Classic dynamic program; the
// files going through here are configuration-sized.
func lcsPairs(a, b []string) [][2]int {
	n, m := len(a), len(b)
	if n == 0 || m == 0 {
		return nil
	}

	dp := make([][]int32, n+1)
	for i := range dp {
		dp[i] = make([]int32, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	pairs := make([][2]int, 0, dp[0][0])
	for i, j := 0, 0; i < n && j < m; {
		switch {
		case a[i] == b[j]:
			pairs = append(pairs, [2]int{i, j})
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			i++
		default:
			j++
		}
	}
	return pairs
}
