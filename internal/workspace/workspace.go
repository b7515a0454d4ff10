// Package workspace manages a local working copy: its synchronized baselines,
// the mirror of remote history, local change detection and applying sync
// responses.
package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/versions"
)

var (
	// ErrNotInitialized is returned when root has no workspace metadata.
	ErrNotInitialized = errors.New("not a docsync working copy")
	// ErrAlreadyInitialized is returned by Init on an existing working copy.
	ErrAlreadyInitialized = errors.New("working copy already initialized")
)

// Workspace is a working copy rooted at a directory.
type Workspace struct {
	root        string
	PackageName string
	Remote      string
	entries     map[string]model.WorkspaceEntry

	tree   *tree.Dir
	mirror *versions.Store
}

type workspaceFile struct {
	PackageName string                 `json:"package_name"`
	Remote      string                 `json:"remote,omitempty"`
	Entries     []model.WorkspaceEntry `json:"entries"`
}

// Init creates the metadata directory for a new working copy of packageName.
func Init(root, packageName, remote string) (*Workspace, error) {
	if util.FileExists(util.WorkspaceFilePath(root)) {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInitialized, root)
	}
	ws, err := newWorkspace(root, packageName, remote, nil)
	if err != nil {
		return nil, err
	}
	if err := ws.Save(); err != nil {
		return nil, err
	}
	return ws, nil
}

// Load opens the working copy at root.
func Load(root string) (*Workspace, error) {
	// #nosec G304 - workspace file lives under the working copy
	data, err := os.ReadFile(util.WorkspaceFilePath(root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotInitialized, root)
		}
		return nil, fmt.Errorf("failed to read workspace: %w", err)
	}
	var wf workspaceFile
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("failed to parse workspace: %w", err)
	}
	return newWorkspace(root, wf.PackageName, wf.Remote, wf.Entries)
}

func newWorkspace(root, packageName, remote string, entries []model.WorkspaceEntry) (*Workspace, error) {
	mirror, err := versions.New(util.HistoryMirrorPath(root), versions.DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	ws := &Workspace{
		root:        root,
		PackageName: packageName,
		Remote:      remote,
		entries:     make(map[string]model.WorkspaceEntry, len(entries)),
		tree:        tree.New(root),
		mirror:      mirror,
	}
	for _, e := range entries {
		ws.entries[e.Path] = e
	}
	return ws, nil
}

// Save writes the workspace file atomically.
func (w *Workspace) Save() error {
	data, err := json.MarshalIndent(workspaceFile{
		PackageName: w.PackageName,
		Remote:      w.Remote,
		Entries:     w.Entries(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal workspace: %w", err)
	}
	if err := util.WriteFileAtomic(util.WorkspaceFilePath(w.root), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write workspace: %w", err)
	}
	return nil
}

// Root returns the working copy directory.
func (w *Workspace) Root() string {
	return w.root
}

// Tree returns the working tree.
func (w *Workspace) Tree() *tree.Dir {
	return w.tree
}

// Mirror returns the local copy of remote version files.
func (w *Workspace) Mirror() *versions.Store {
	return w.mirror
}

// Entry returns the baseline of p.
func (w *Workspace) Entry(p string) (model.WorkspaceEntry, bool) {
	e, ok := w.entries[p]
	return e, ok
}

// Entries returns all baselines in path order.
func (w *Workspace) Entries() []model.WorkspaceEntry {
	out := make([]model.WorkspaceEntry, 0, len(w.entries))
	for _, e := range w.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// SetEntry records e as the baseline of its path.
func (w *Workspace) SetEntry(e model.WorkspaceEntry) {
	w.entries[e.Path] = e
}

// Forget drops the baseline of p.
func (w *Workspace) Forget(p string) {
	delete(w.entries, p)
}

// Ledger returns the local copy of the remote ledger. A working copy that
// never synced has an empty ledger.
func (w *Workspace) Ledger() (string, error) {
	// #nosec G304 - ledger lives under the working copy
	data, err := os.ReadFile(util.LedgerPath(w.root))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}
	return string(data), nil
}

// Manifest derives the remote manifest as of the last sync.
func (w *Workspace) Manifest() (history.Manifest, error) {
	text, err := w.Ledger()
	if err != nil {
		return nil, err
	}
	entries, err := history.Parse(text)
	if err != nil {
		return nil, err
	}
	return history.DeriveManifest(entries), nil
}

func (w *Workspace) writeLedger(text string) error {
	if err := util.WriteFileAtomic(util.LedgerPath(w.root), []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// baseline returns the mirrored content of p at its baseline version.
func (w *Workspace) baseline(ctx context.Context, p string) ([]byte, error) {
	e, ok := w.entries[p]
	if !ok || e.IsNew() {
		return nil, versions.ErrNotFound
	}
	return w.mirror.Read(ctx, p, e.BaseVersion())
}
