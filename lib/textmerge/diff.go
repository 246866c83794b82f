// Copyright 2026 The Strata Authors
// SPDX-License-Identifier: Apache-2.0

package textmerge

import (
	"fmt"
	"strings"
)

// contextLines is the number of unchanged lines shown around each
// change in unified output.
const contextLines = 3

type opKind uint8

const (
	opEqual opKind = iota
	opDelete
	opInsert
)

// op is one run of a line-level edit script. aLo/aHi index the left
// side, bLo/bHi the right; equal runs span both.
type op struct {
	kind opKind
	aLo  int
	aHi  int
	bLo  int
	bHi  int
}

// editScript converts LCS pairs into an op list covering both inputs.
func editScript(a, b []string) []op {
	pairs := lcsPairs(a, b)
	var ops []op
	aPos, bPos := 0, 0

	flushGap := func(aHi, bHi int) {
		if aPos < aHi {
			ops = append(ops, op{kind: opDelete, aLo: aPos, aHi: aHi, bLo: bPos, bHi: bPos})
			aPos = aHi
		}
		if bPos < bHi {
			ops = append(ops, op{kind: opInsert, aLo: aPos, aHi: aPos, bLo: bPos, bHi: bHi})
			bPos = bHi
		}
	}

	for _, p := range pairs {
		flushGap(p[0], p[1])
		if len(ops) > 0 && ops[len(ops)-1].kind == opEqual {
			ops[len(ops)-1].aHi++
			ops[len(ops)-1].bHi++
		} else {
			ops = append(ops, op{kind: opEqual, aLo: p[0], aHi: p[0] + 1, bLo: p[1], bHi: p[1] + 1})
		}
		aPos, bPos = p[0]+1, p[1]+1
	}
	flushGap(len(a), len(b))
	return ops
}

// Unified renders a unified diff between two texts with three lines
// of context. Labels appear on the --- and +++ header lines. Equal
// inputs produce an empty string.
func Unified(aLabel, bLabel string, a, b []byte) string {
	aLines := splitLines(a)
	bLines := splitLines(b)
	ops := editScript(aLines, bLines)

	changed := false
	for _, o := range ops {
		if o.kind != opEqual {
			changed = true
			break
		}
	}
	if !changed {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("--- " + aLabel + "\n")
	sb.WriteString("+++ " + bLabel + "\n")

	// Group ops into hunks: each run of changes, separated from the
	// next by an equal run short enough that their context regions
	// would touch, plus up to contextLines of surrounding context.
	i := 0
	for i < len(ops) {
		if ops[i].kind == opEqual {
			i++
			continue
		}

		j := i
		for j+1 < len(ops) {
			if ops[j+1].kind != opEqual {
				j++
				continue
			}
			if j+2 < len(ops) && ops[j+1].aHi-ops[j+1].aLo <= 2*contextLines {
				j += 2
				continue
			}
			break
		}

		lead := 0
		if i > 0 {
			lead = min(contextLines, ops[i-1].aHi-ops[i-1].aLo)
		}
		trail := 0
		if j+1 < len(ops) {
			trail = min(contextLines, ops[j+1].aHi-ops[j+1].aLo)
		}

		hunkALo, hunkBLo := ops[i].aLo-lead, ops[i].bLo-lead
		hunkAHi, hunkBHi := ops[j].aHi+trail, ops[j].bHi+trail
		writeHunkHeader(&sb, hunkALo, hunkAHi, hunkBLo, hunkBHi)

		writeLines(&sb, ' ', aLines[hunkALo:ops[i].aLo])
		for k := i; k <= j; k++ {
			o := ops[k]
			switch o.kind {
			case opEqual:
				writeLines(&sb, ' ', aLines[o.aLo:o.aHi])
			case opDelete:
				writeLines(&sb, '-', aLines[o.aLo:o.aHi])
			case opInsert:
				writeLines(&sb, '+', bLines[o.bLo:o.bHi])
			}
		}
		writeLines(&sb, ' ', aLines[ops[j].aHi:ops[j].aHi+trail])

		i = j + 1
	}
	return sb.String()
}

func writeHunkHeader(sb *strings.Builder, aLo, aHi, bLo, bHi int) {
	fmt.Fprintf(sb, "@@ -%s +%s @@\n", hunkRange(aLo, aHi), hunkRange(bLo, bHi))
}

// hunkRange formats a unified range: 1-based start plus count, with
// the count omitted when it is one and the start left at the line
// before for empty ranges, following the format diff tools emit.
func hunkRange(lo, hi int) string {
	count := hi - lo
	switch count {
	case 0:
		return fmt.Sprintf("%d,0", lo)
	case 1:
		return fmt.Sprintf("%d", lo+1)
	default:
		return fmt.Sprintf("%d,%d", lo+1, count)
	}
}

func writeLines(sb *strings.Builder, prefix byte, lines []string) {
	for _, line := range lines {
		sb.WriteByte(prefix)
		if strings.HasSuffix(line, "\n") {
			sb.WriteString(line)
		} else {
			sb.WriteString(line)
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
}
