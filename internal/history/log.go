package history

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/klauern/docsync/internal/model"
)

// ErrMalformedLedger is returned when ledger text cannot be parsed or breaks
// the per-path version ordering.
var ErrMalformedLedger = errors.New("malformed ledger")

// Entry is one appended record of the log.
type Entry struct {
	Path string
	Edit model.FileEdit
}

// Manifest maps a path to its latest edit.
type Manifest map[string]model.FileEdit

// PendingEdit is an edit waiting to be appended. The version is assigned at
// append time.
type PendingEdit struct {
	Operation model.FileOperation
	Author    string
	Message   string
	SrcCR     *int
}

// DeriveManifest folds entries into a manifest. For each path the edit with
// the strictly greatest version wins, so the result does not depend on the
// order of entries.
func DeriveManifest(entries []Entry) Manifest {
	m := make(Manifest)
	for _, e := range entries {
		if cur, ok := m[e.Path]; ok && cur.Version >= e.Edit.Version {
			continue
		}
		m[e.Path] = e.Edit
	}
	return m
}

// Live returns the manifest without deleted paths.
func (m Manifest) Live() Manifest {
	live := make(Manifest, len(m))
	for p, e := range m {
		if !e.IsDeleted() {
			live[p] = e
		}
	}
	return live
}

// Lookup returns the live edit for path. Deleted paths are reported absent.
func (m Manifest) Lookup(path string) (model.FileEdit, bool) {
	e, ok := m[path]
	if !ok || e.IsDeleted() {
		return model.FileEdit{}, false
	}
	return e, true
}

// Paths returns the manifest paths in sorted order.
func (m Manifest) Paths() []string {
	paths := make([]string, 0, len(m))
	for p := range m {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// NextVersion returns the version the next edit of path receives.
func (m Manifest) NextVersion(path string) int32 {
	return m[path].Version + 1
}

// Stamp assigns versions to pending edits against manifest and returns the
// entries in path order, ready to append.
func Stamp(manifest Manifest, pending map[string]PendingEdit, now time.Time) []Entry {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		pe := pending[p]
		entries = append(entries, Entry{
			Path: p,
			Edit: model.FileEdit{
				Version:   manifest.NextVersion(p),
				Operation: pe.Operation,
				Timestamp: now.UTC(),
				Author:    pe.Author,
				Message:   pe.Message,
				SrcCR:     pe.SrcCR,
			},
		})
	}
	return entries
}

// Validate checks that no path carries the same version twice and that every
// edit is well formed.
func Validate(entries []Entry) error {
	seen := make(map[string]map[int32]struct{})
	for i, e := range entries {
		if e.Path == "" {
			return fmt.Errorf("%w: entry %d has no path", ErrMalformedLedger, i)
		}
		if e.Edit.Version < 1 {
			return fmt.Errorf("%w: %s has non-positive version %d", ErrMalformedLedger, e.Path, e.Edit.Version)
		}
		if !e.Edit.Operation.IsValid() {
			return fmt.Errorf("%w: %s has invalid operation %q", ErrMalformedLedger, e.Path, e.Edit.Operation)
		}
		versions, ok := seen[e.Path]
		if !ok {
			versions = make(map[int32]struct{})
			seen[e.Path] = versions
		}
		if _, dup := versions[e.Edit.Version]; dup {
			return fmt.Errorf("%w: %s version %d recorded twice", ErrMalformedLedger, e.Path, e.Edit.Version)
		}
		versions[e.Edit.Version] = struct{}{}
	}
	return nil
}

// checkAppend verifies that entries continue the version sequence of existing.
func checkAppend(existing Manifest, entries []Entry) error {
	last := make(map[string]int32, len(entries))
	for _, e := range entries {
		floor := existing[e.Path].Version
		if v, ok := last[e.Path]; ok {
			floor = v
		}
		if e.Edit.Version <= floor {
			return fmt.Errorf("%w: %s version %d does not follow %d", ErrMalformedLedger, e.Path, e.Edit.Version, floor)
		}
		last[e.Path] = e.Edit.Version
	}
	return Validate(entries)
}
