package merge

import (
	"errors"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// errTooManyLines is returned when the inputs hold more distinct lines than
// there are runes to encode them with.
var errTooManyLines = errors.New("too many distinct lines to merge")

// lineIndex maps each distinct line to a rune so go-diff can align whole
// lines. One index is shared by all texts of a merge so equal lines map to
// equal runes.
type lineIndex struct {
	runes map[string]rune
	next  rune
}

func newLineIndex() *lineIndex {
	return &lineIndex{runes: make(map[string]rune), next: 1}
}

func (x *lineIndex) encode(lines []string) ([]rune, error) {
	out := make([]rune, len(lines))
	for i, l := range lines {
		r, ok := x.runes[l]
		if !ok {
			// surrogates do not survive a string round trip
			if x.next >= 0xD800 && x.next <= 0xDFFF {
				x.next = 0xE000
			}
			if x.next > utf8.MaxRune {
				return nil, errTooManyLines
			}
			r = x.next
			x.next++
			x.runes[l] = r
		}
		out[i] = r
	}
	return out, nil
}

// changes returns the edits that turn base into derived, in base order.
func (x *lineIndex) changes(base, derived []string, s side) ([]change, error) {
	a, err := x.encode(base)
	if err != nil {
		return nil, err
	}
	b, err := x.encode(derived)
	if err != nil {
		return nil, err
	}

	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0
	diffs := dmp.DiffMainRunes(a, b, false)

	var (
		out     []change
		baseIdx int
		newIdx  int
		cur     *change
	)
	flush := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			flush()
			baseIdx += n
			newIdx += n
		case diffmatchpatch.DiffDelete:
			if cur == nil {
				cur = &change{BaseStart: baseIdx, BaseEnd: baseIdx, side: s}
			}
			baseIdx += n
			cur.BaseEnd = baseIdx
		case diffmatchpatch.DiffInsert:
			if cur == nil {
				cur = &change{BaseStart: baseIdx, BaseEnd: baseIdx, side: s}
			}
			cur.NewLines = append(cur.NewLines, derived[newIdx:newIdx+n]...)
			newIdx += n
		}
	}
	flush()
	return out, nil
}
