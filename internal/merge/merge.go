// Package merge implements a line-based three-way merge of text content.
//
// Merge takes an ancestor and two descendants ("ours" and "theirs") and either
// produces the combined text or, when both sides changed the same region
// differently, the text with standard conflict markers embedded.
package merge

import (
	"bytes"
	"errors"
	"log/slog"
	"sort"
	"unicode/utf8"

	"github.com/klauern/docsync/internal/logging"
)

// ErrNotText is returned when any input is not valid UTF-8.
var ErrNotText = errors.New("content is not valid UTF-8 text")

// Result represents the outcome of a merge.
type Result struct {
	// Clean is true when no region conflicted.
	Clean bool

	// Content is the merged text, with conflict markers when not clean.
	Content []byte

	// Conflicts describes each conflicting region.
	Conflicts []Conflict
}

// Conflict is one region both sides changed differently.
type Conflict struct {
	// StartLine is the 1-based line of the start marker in Content.
	StartLine int

	// EndLine is the 1-based line of the end marker in Content.
	EndLine int

	Ours   string
	Theirs string
	Base   string
}

// Merger merges text and renders conflicts.
type Merger struct {
	// ConflictMarkerStart opens the "ours" side of a conflict.
	ConflictMarkerStart string

	// ConflictMarkerMiddle separates the two sides.
	ConflictMarkerMiddle string

	// ConflictMarkerEnd closes the "theirs" side of a conflict.
	ConflictMarkerEnd string
}

// NewMerger creates a merger with the default conflict markers.
func NewMerger() *Merger {
	return NewMergerWithLabels("ours", "theirs")
}

// NewMergerWithLabels creates a merger whose markers carry the given labels.
func NewMergerWithLabels(ours, theirs string) *Merger {
	return &Merger{
		ConflictMarkerStart:  "<<<<<<< " + ours,
		ConflictMarkerMiddle: "=======",
		ConflictMarkerEnd:    ">>>>>>> " + theirs,
	}
}

// Merge performs a three-way merge of ours and theirs against ancestor. The
// inputs are not modified.
func (m *Merger) Merge(ancestor, ours, theirs []byte) (Result, error) {
	if !utf8.Valid(ancestor) || !utf8.Valid(ours) || !utf8.Valid(theirs) {
		return Result{}, ErrNotText
	}

	switch {
	case bytes.Equal(ours, theirs), bytes.Equal(ancestor, theirs):
		return Result{Clean: true, Content: bytes.Clone(ours)}, nil
	case bytes.Equal(ancestor, ours):
		return Result{Clean: true, Content: bytes.Clone(theirs)}, nil
	}

	base := splitLines(ancestor)
	oursLines := splitLines(ours)
	theirsLines := splitLines(theirs)

	idx := newLineIndex()
	oursChanges, err := idx.changes(base, oursLines, sideOurs)
	if err != nil {
		return Result{}, err
	}
	theirsChanges, err := idx.changes(base, theirsLines, sideTheirs)
	if err != nil {
		return Result{}, err
	}

	result := m.applyChanges(base, oursChanges, theirsChanges)

	logging.Debug("three-way merge completed",
		logging.Operation("merge"),
		slog.Bool("clean", result.Clean),
		slog.Int("base_lines", len(base)),
		logging.Count(len(result.Conflicts)),
	)
	return result, nil
}

// Merge runs a three-way merge with the default markers.
func Merge(ancestor, ours, theirs []byte) (Result, error) {
	return NewMerger().Merge(ancestor, ours, theirs)
}

// side tags which descendant a change came from.
type side int

const (
	sideOurs side = iota
	sideTheirs
)

// change replaces base[BaseStart:BaseEnd] with NewLines. An empty range is a
// pure insertion before base[BaseStart].
type change struct {
	BaseStart int
	BaseEnd   int
	NewLines  []string
	side      side
}

func (c change) isInsertion() bool {
	return c.BaseStart == c.BaseEnd
}

// applyChanges walks the changes of both sides in base order. Changes whose
// base ranges overlap form one group; a group touched by only one side takes
// that side, a group touched by both resolves only when both sides produced
// the same text for it. Adjacent ranges do not overlap, and an insertion at
// the boundary of a range is applied before it.
func (m *Merger) applyChanges(base []string, oursChanges, theirsChanges []change) Result {
	all := make([]change, 0, len(oursChanges)+len(theirsChanges))
	all = append(all, oursChanges...)
	all = append(all, theirsChanges...)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].BaseStart != all[j].BaseStart {
			return all[i].BaseStart < all[j].BaseStart
		}
		return all[i].BaseEnd < all[j].BaseEnd
	})

	result := Result{Clean: true}
	var out []string
	pos := 0

	for i := 0; i < len(all); {
		group := []change{all[i]}
		gs, ge := all[i].BaseStart, all[i].BaseEnd
		j := i + 1
		for ; j < len(all); j++ {
			c := all[j]
			overlaps := c.BaseStart < ge
			sameInsertion := gs == ge && c.isInsertion() && c.BaseStart == ge
			if !overlaps && !sameInsertion {
				break
			}
			group = append(group, c)
			ge = max(ge, c.BaseEnd)
		}
		i = j

		out = append(out, base[pos:gs]...)
		pos = ge

		oursRegion, hasOurs := region(base, group, sideOurs, gs, ge)
		theirsRegion, hasTheirs := region(base, group, sideTheirs, gs, ge)

		switch {
		case hasOurs && !hasTheirs:
			out = append(out, oursRegion...)
		case hasTheirs && !hasOurs:
			out = append(out, theirsRegion...)
		case equalLines(oursRegion, theirsRegion):
			out = append(out, oursRegion...)
		default:
			result.Clean = false
			conflict := Conflict{
				StartLine: len(out) + 1,
				Ours:      join(oursRegion),
				Theirs:    join(theirsRegion),
				Base:      join(base[gs:ge]),
			}
			out = append(out, m.ConflictMarkerStart+"\n")
			out = appendSection(out, oursRegion)
			out = append(out, m.ConflictMarkerMiddle+"\n")
			out = appendSection(out, theirsRegion)
			out = append(out, m.ConflictMarkerEnd+"\n")
			conflict.EndLine = len(out)
			result.Conflicts = append(result.Conflicts, conflict)
		}
	}
	out = append(out, base[pos:]...)

	result.Content = []byte(join(out))
	return result
}

// region renders base[gs:ge] as seen by one side. ok is false when the side
// has no change in the group.
func region(base []string, group []change, s side, gs, ge int) ([]string, bool) {
	var (
		lines []string
		ok    bool
	)
	pos := gs
	for _, c := range group {
		if c.side != s {
			continue
		}
		ok = true
		lines = append(lines, base[pos:c.BaseStart]...)
		lines = append(lines, c.NewLines...)
		pos = c.BaseEnd
	}
	lines = append(lines, base[pos:ge]...)
	return lines, ok
}

// appendSection appends lines, terminating the last one so the following
// marker starts on its own line.
func appendSection(out, lines []string) []string {
	for i, l := range lines {
		if i == len(lines)-1 && l != "" && l[len(l)-1] != '\n' {
			l += "\n"
		}
		out = append(out, l)
	}
	return out
}

func equalLines(a, b []string) bool {
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

func join(lines []string) string {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	buf := make([]byte, 0, n)
	for _, l := range lines {
		buf = append(buf, l...)
	}
	return string(buf)
}

// splitLines splits text after each newline. Every element keeps its
// terminator; the last one may lack it.
func splitLines(text []byte) []string {
	var lines []string
	for len(text) > 0 {
		i := bytes.IndexByte(text, '\n')
		if i < 0 {
			lines = append(lines, string(text))
			break
		}
		lines = append(lines, string(text[:i+1]))
		text = text[i+1:]
	}
	return lines
}
