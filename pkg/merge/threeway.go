// Package merge implements the three-way line merger and the name-keyed
// merge strategy registry (ours/theirs/union/three-way) that operates over
// per-branch file changes.
package merge

import (
	"slices"
	"sort"
	"strings"

	"github.com/ardentforge/branchctl/pkg/diff"
)

// Outcome is the result of a three-way merge: either fully merged text, or a
// list of unresolved line conflicts.
type Outcome struct {
	Merged    string
	Conflicts []LineConflict
	IsMerged  bool
}

// LineConflict describes an unresolved overlap between two sides' edits to
// the same base region.
type LineConflict struct {
	// LineStart is the 1-based merged-buffer line at which the conflict was
	// emitted. LineEnd is one past the merged buffer's final line count, and
	// so is the same for every conflict of one merge.
	LineStart    int
	LineEnd      int
	BaseLines    []string
	LeftLines    []string
	RightLines   []string
}

// FormatWithMarkers renders a git-style conflict block. When base lines are
// present, a "|||||||" base section is included between the two sides.
func (c LineConflict) FormatWithMarkers(leftName, rightName string) string {
	var b strings.Builder

	b.WriteString("<<<<<<< ")
	b.WriteString(leftName)
	b.WriteByte('\n')
	for _, line := range c.LeftLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if len(c.BaseLines) > 0 {
		b.WriteString("||||||| base\n")
		for _, line := range c.BaseLines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteString("=======\n")
	for _, line := range c.RightLines {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	b.WriteString(">>>>>>> ")
	b.WriteString(rightName)
	b.WriteByte('\n')

	return b.String()
}

// ThreeWayMerge compares base against two branch versions using the given
// diff algorithm, auto-merging non-overlapping edits and surfacing
// overlapping ones as LineConflicts.
func ThreeWayMerge(base, left, right string, algo diff.Algorithm) Outcome {
	baseLines := splitLines(base)
	leftLines := splitLines(left)
	rightLines := splitLines(right)

	diffLeft := algo.Diff(baseLines, leftLines)
	diffRight := algo.Diff(baseLines, rightLines)

	changesLeft := extractChanges(diffLeft)
	changesRight := extractChanges(diffRight)

	return performMerge(baseLines, leftLines, rightLines, changesLeft, changesRight)
}

// splitLines mirrors Rust's str::lines(): splits on '\n', stripping any
// trailing empty element produced by a final newline, and does not retain
// line terminators.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return []string{""}
	}
	return strings.Split(s, "\n")
}

type changeKind int

const (
	changeInsert changeKind = iota
	changeDelete
	changeReplace
)

type changeRange struct {
	hasBase            bool
	baseStart, baseEnd int

	hasTarget              bool
	targetStart, targetEnd int

	kind changeKind
}

func extractChanges(ops []diff.Op) []changeRange {
	var changes []changeRange
	for _, op := range ops {
		switch op.Kind {
		case diff.OpEqual:
			continue
		case diff.OpInsert:
			changes = append(changes, changeRange{hasTarget: true, targetStart: op.NewStart, targetEnd: op.NewEnd, kind: changeInsert})
		case diff.OpDelete:
			changes = append(changes, changeRange{hasBase: true, baseStart: op.OldStart, baseEnd: op.OldEnd, kind: changeDelete})
		case diff.OpReplace:
			changes = append(changes, changeRange{
				hasBase: true, baseStart: op.OldStart, baseEnd: op.OldEnd,
				hasTarget: true, targetStart: op.NewStart, targetEnd: op.NewEnd,
				kind: changeReplace,
			})
		}
	}
	return changes
}

// baseRangeOrTarget returns the change's position in base, falling back to its
// target range (as an insert-point marker) when it has none — matching the
// Rust original's overlap heuristic for pure insertions.
func (c changeRange) baseRangeOrTarget() (int, int) {
	if c.hasBase {
		return c.baseStart, c.baseEnd
	}
	if c.hasTarget {
		return c.targetStart, c.targetEnd
	}
	return 0, 0
}

func changesOverlap(a, b changeRange) bool {
	aStart, aEnd := a.baseRangeOrTarget()
	bStart, bEnd := b.baseRangeOrTarget()
	return aStart < bEnd && bStart < aEnd
}

type positioned struct {
	pos    int
	change changeRange
	side   byte // 'a' (left) or 'b' (right)
}

func performMerge(base, left, right []string, changesLeft, changesRight []changeRange) Outcome {
	var mergedLines []string
	var conflicts []LineConflict
	baseIdx := 0

	var all []positioned
	for _, c := range changesLeft {
		pos := 0
		if c.hasBase {
			pos = c.baseStart
		}
		all = append(all, positioned{pos: pos, change: c, side: 'a'})
	}
	for _, c := range changesRight {
		pos := 0
		if c.hasBase {
			pos = c.baseStart
		}
		all = append(all, positioned{pos: pos, change: c, side: 'b'})
	}

	sort.SliceStable(all, func(i, j int) bool { return all[i].pos < all[j].pos })

	i := 0
	for i < len(all) {
		change := all[i].change
		side := all[i].side

		for baseIdx < all[i].pos {
			mergedLines = append(mergedLines, base[baseIdx])
			baseIdx++
		}

		overlapping := []changeRange{change}
		sides := []byte{side}

		j := i + 1
		for j < len(all) {
			other := all[j]
			overlaps := false
			for _, oc := range overlapping {
				if changesOverlap(oc, other.change) {
					overlaps = true
					break
				}
			}
			if !overlaps {
				break
			}
			already := false
			for _, s := range sides {
				if s == other.side {
					already = true
					break
				}
			}
			if !already {
				overlapping = append(overlapping, other.change)
				sides = append(sides, other.side)
			}
			j++
		}

		if len(sides) > 1 {
			baseStart := baseIdx
			baseEnd := baseStart
			for _, c := range overlapping {
				if c.hasBase && c.baseEnd > baseEnd {
					baseEnd = c.baseEnd
				}
			}

			var conflictBase []string
			if baseStart < baseEnd {
				conflictBase = append([]string{}, base[baseStart:baseEnd]...)
			}

			leftContent := findSideContent(overlapping, sides, 'a', left, conflictBase)
			rightContent := findSideContent(overlapping, sides, 'b', right, conflictBase)

			// Both sides made the same edit to the same base region: apply it once.
			ca, cb := overlapping[0], overlapping[1]
			if ca.hasBase == cb.hasBase && ca.baseStart == cb.baseStart && ca.baseEnd == cb.baseEnd &&
				slices.Equal(leftContent, rightContent) {
				mergedLines = append(mergedLines, leftContent...)
				baseIdx = baseEnd
				i = j
				continue
			}

			conflicts = append(conflicts, LineConflict{
				LineStart:  len(mergedLines) + 1,
				LineEnd:    len(mergedLines) + 1,
				BaseLines:  conflictBase,
				LeftLines:  leftContent,
				RightLines: rightContent,
			})

			baseIdx = baseEnd
			i = j
		} else {
			c := overlapping[0]
			switch c.kind {
			case changeInsert:
				if c.hasTarget {
					src := sourceFor(sides[0], left, right)
					mergedLines = append(mergedLines, src[c.targetStart:c.targetEnd]...)
				}
			case changeDelete:
				if c.hasBase {
					baseIdx = c.baseEnd
				}
			case changeReplace:
				if c.hasBase {
					baseIdx = c.baseEnd
				}
				if c.hasTarget {
					src := sourceFor(sides[0], left, right)
					mergedLines = append(mergedLines, src[c.targetStart:c.targetEnd]...)
				}
			}
			i++
		}
	}

	for baseIdx < len(base) {
		mergedLines = append(mergedLines, base[baseIdx])
		baseIdx++
	}

	if len(conflicts) == 0 {
		return Outcome{Merged: strings.Join(mergedLines, "\n"), IsMerged: true}
	}

	for idx := range conflicts {
		conflicts[idx].LineEnd = len(mergedLines) + 1
	}
	return Outcome{Conflicts: conflicts, IsMerged: false}
}

func sourceFor(side byte, left, right []string) []string {
	if side == 'a' {
		return left
	}
	return right
}

func findSideContent(overlapping []changeRange, sides []byte, want byte, branchLines, fallback []string) []string {
	for idx, s := range sides {
		if s != want {
			continue
		}
		c := overlapping[idx]
		if c.hasTarget {
			return append([]string{}, branchLines[c.targetStart:c.targetEnd]...)
		}
		return nil // deleted
	}
	return fallback
}
