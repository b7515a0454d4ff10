package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/versions"
)

// ChangeKind classifies a local change against the synchronized baseline.
type ChangeKind string

const (
	// Added is a file with no synchronized baseline.
	Added ChangeKind = "added"
	// Modified is a file whose bytes differ from its baseline version.
	Modified ChangeKind = "modified"
	// Deleted is a synchronized file missing from the tree.
	Deleted ChangeKind = "deleted"
)

// Change is one local change.
type Change struct {
	Path    string
	Kind    ChangeKind
	Version int32 // baseline, zero for Added
}

// Status compares the tree with the baselines and returns local changes in
// path order.
func (w *Workspace) Status(ctx context.Context, ig *Ignore) ([]Change, error) {
	paths, err := w.tree.Walk(ctx, ig.skip)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(paths))
	var changes []Change
	for _, p := range paths {
		present[p] = struct{}{}
		entry, ok := w.entries[p]
		if !ok || entry.IsNew() {
			changes = append(changes, Change{Path: p, Kind: Added})
			continue
		}
		modified, err := w.modified(ctx, p)
		if err != nil {
			return nil, err
		}
		if modified {
			changes = append(changes, Change{Path: p, Kind: Modified, Version: entry.BaseVersion()})
		}
	}

	for _, entry := range w.Entries() {
		if _, ok := present[entry.Path]; ok || entry.IsNew() || ig.Match(entry.Path) {
			continue
		}
		changes = append(changes, Change{Path: entry.Path, Kind: Deleted, Version: entry.BaseVersion()})
	}

	sortChanges(changes)
	return changes, nil
}

func (w *Workspace) modified(ctx context.Context, p string) (bool, error) {
	if w.entries[p].IsDeleted() {
		return true, nil
	}
	base, err := w.baseline(ctx, p)
	if err != nil {
		if errors.Is(err, versions.ErrNotFound) {
			return true, nil
		}
		return false, err
	}
	local, err := w.tree.Read(ctx, p)
	if err != nil {
		return false, err
	}
	return !bytes.Equal(base, local), nil
}

// Requests turns changes into the file list of a sync request.
func (w *Workspace) Requests(ctx context.Context, changes []Change) ([]model.SyncRequestFile, error) {
	files := make([]model.SyncRequestFile, 0, len(changes))
	for _, c := range changes {
		switch c.Kind {
		case Added, Modified:
			content, err := w.tree.Read(ctx, c.Path)
			if err != nil {
				return nil, err
			}
			if c.Kind == Added {
				files = append(files, model.NewAddRequest(c.Path, content, nil))
			} else {
				files = append(files, model.NewUpdateRequest(c.Path, content, c.Version, nil))
			}
		case Deleted:
			files = append(files, model.NewDeleteRequest(c.Path, c.Version, nil))
		default:
			return nil, fmt.Errorf("unknown change kind %q for %s", c.Kind, c.Path)
		}
	}
	return files, nil
}

// Filter keeps the changes whose path is in paths. An empty paths keeps all.
func Filter(changes []Change, paths []string) []Change {
	if len(paths) == 0 {
		return changes
	}
	want := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		want[p] = struct{}{}
	}
	var out []Change
	for _, c := range changes {
		if _, ok := want[c.Path]; ok {
			out = append(out, c)
		}
	}
	return out
}

func sortChanges(changes []Change) {
	sort.Slice(changes, func(i, j int) bool { return changes[i].Path < changes[j].Path })
}
