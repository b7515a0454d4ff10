package workspace

import (
	"fmt"
	"strings"

	"github.com/klauern/docsync/internal/model"
)

// Action is what the updater did to a working-copy file.
type Action string

const (
	// ActionWritten means the file was created or overwritten.
	ActionWritten Action = "written"
	// ActionRemoved means the file was deleted.
	ActionRemoved Action = "removed"
	// ActionUnchanged means the file already had the incoming content.
	ActionUnchanged Action = "unchanged"
	// ActionConflict means the file was left alone and needs resolution.
	ActionConflict Action = "conflict"
)

// FileResult is the outcome for one file.
type FileResult struct {
	Path   string
	Action Action
	Status model.SyncStatus
	// BackupID names the backup taken before the file was touched.
	BackupID string
	// ConflictCopy is where the remote side of a conflict was saved.
	ConflictCopy string
}

// ApplyResult collects the outcome of applying a sync or clone response.
type ApplyResult struct {
	Files        []FileResult
	HistoryFiles int
}

func (r *ApplyResult) filter(action Action) []FileResult {
	var out []FileResult
	for _, f := range r.Files {
		if f.Action == action {
			out = append(out, f)
		}
	}
	return out
}

// Written returns files that were created or overwritten.
func (r *ApplyResult) Written() []FileResult {
	return r.filter(ActionWritten)
}

// Removed returns files that were deleted.
func (r *ApplyResult) Removed() []FileResult {
	return r.filter(ActionRemoved)
}

// Conflicts returns files that need manual resolution.
func (r *ApplyResult) Conflicts() []FileResult {
	return r.filter(ActionConflict)
}

// HasConflicts reports whether any file conflicted.
func (r *ApplyResult) HasConflicts() bool {
	return len(r.Conflicts()) > 0
}

// Summary returns a one-line summary.
func (r *ApplyResult) Summary() string {
	parts := []string{
		fmt.Sprintf("%d written", len(r.Written())),
		fmt.Sprintf("%d removed", len(r.Removed())),
	}
	if n := len(r.Conflicts()); n > 0 {
		parts = append(parts, fmt.Sprintf("%d conflicted", n))
	}
	if r.HistoryFiles > 0 {
		parts = append(parts, fmt.Sprintf("%d history files", r.HistoryFiles))
	}
	return strings.Join(parts, ", ")
}
