package model

import (
	"errors"
	"fmt"
	"path"
	"strings"
)

// ErrInvalidRequest marks protocol faults in sync payloads.
var ErrInvalidRequest = errors.New("invalid sync request")

// MetaDirName is the working copy metadata directory. No package path may
// live under it.
const MetaDirName = ".docsync"

// Action tags the variant of a request or response file.
type Action string

const (
	ActionAdd    Action = "Add"
	ActionUpdate Action = "Update"
	ActionDelete Action = "Delete"
)

// IsValid returns true if the action is recognized
func (a Action) IsValid() bool {
	switch a {
	case ActionAdd, ActionUpdate, ActionDelete:
		return true
	default:
		return false
	}
}

// SyncRequestFile is one client-proposed change. Version is the client's
// baseline ("the version I last saw") and is only meaningful for Update and
// Delete.
type SyncRequestFile struct {
	Action  Action `json:"action"`
	Path    string `json:"path"`
	Content []byte `json:"content,omitempty"`
	Version int32  `json:"version,omitempty"`
	SrcCR   *int   `json:"src_cr,omitempty"`
}

// NewAddRequest builds an Add request.
func NewAddRequest(p string, content []byte, srcCR *int) SyncRequestFile {
	return SyncRequestFile{Action: ActionAdd, Path: p, Content: content, SrcCR: srcCR}
}

// NewUpdateRequest builds an Update request against baseline version.
func NewUpdateRequest(p string, content []byte, version int32, srcCR *int) SyncRequestFile {
	return SyncRequestFile{Action: ActionUpdate, Path: p, Content: content, Version: version, SrcCR: srcCR}
}

// NewDeleteRequest builds a Delete request against baseline version.
func NewDeleteRequest(p string, version int32, srcCR *int) SyncRequestFile {
	return SyncRequestFile{Action: ActionDelete, Path: p, Version: version, SrcCR: srcCR}
}

// Validate checks the variant carries the fields it needs.
func (f SyncRequestFile) Validate() error {
	if err := ValidatePath(f.Path); err != nil {
		return err
	}
	switch f.Action {
	case ActionAdd:
		if f.Version != 0 {
			return fmt.Errorf("%w: add of %q must not carry a version", ErrInvalidRequest, f.Path)
		}
	case ActionUpdate, ActionDelete:
		if f.Version < 1 {
			return fmt.Errorf("%w: %s of %q requires a baseline version", ErrInvalidRequest, strings.ToLower(string(f.Action)), f.Path)
		}
	default:
		return fmt.Errorf("%w: unknown action %q for %q", ErrInvalidRequest, f.Action, f.Path)
	}
	return nil
}

// SyncResponseFile is the remote's resolution of one path.
type SyncResponseFile struct {
	Action  Action     `json:"action"`
	Path    string     `json:"path"`
	Status  SyncStatus `json:"status"`
	Content []byte     `json:"content"`
}

// IsConflicted reports whether the file needs manual resolution.
func (f SyncResponseFile) IsConflicted() bool {
	return f.Status.IsConflict()
}

// IsDeleted reports whether the response describes a deletion.
func (f SyncResponseFile) IsDeleted() bool {
	return f.Action == ActionDelete
}

// HistoryFile is a raw version file, addressed by its storage key.
type HistoryFile struct {
	Path    string `json:"path"`
	Content []byte `json:"content"`
}

// SyncRequest is the body of a sync call. History is the client's serialized
// ledger as it was before this batch.
type SyncRequest struct {
	PackageName string            `json:"package_name"`
	Files       []SyncRequestFile `json:"files"`
	History     string            `json:"history"`
	Author      string            `json:"author,omitempty"`
	Message     string            `json:"message,omitempty"`
}

// Validate checks the request shape. Duplicate paths are rejected because
// files in one batch are resolved independently of each other.
func (r *SyncRequest) Validate() error {
	if strings.TrimSpace(r.PackageName) == "" {
		return fmt.Errorf("%w: package name is required", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(r.Files))
	for _, f := range r.Files {
		if err := f.Validate(); err != nil {
			return err
		}
		if _, dup := seen[f.Path]; dup {
			return fmt.Errorf("%w: path %q appears more than once", ErrInvalidRequest, f.Path)
		}
		seen[f.Path] = struct{}{}
	}
	return nil
}

// SyncResponse is what the remote returns for a sync call.
type SyncResponse struct {
	Files      []SyncResponseFile `json:"files"`
	DotHistory []HistoryFile      `json:"dot_history"`
	Latest     string             `json:"latest_ftd"`
}

// Conflicts returns the conflicted files of the response.
func (r *SyncResponse) Conflicts() []SyncResponseFile {
	var out []SyncResponseFile
	for _, f := range r.Files {
		if f.IsConflicted() {
			out = append(out, f)
		}
	}
	return out
}

// CloneResponse carries everything needed to start a new working copy.
type CloneResponse struct {
	PackageName string            `json:"package_name"`
	Files       map[string][]byte `json:"files"`
	DotHistory  []HistoryFile     `json:"dot_history"`
	Latest      string            `json:"latest_ftd"`
}

// ValidatePath checks that p is a clean, slash-separated path relative to the
// package root and outside the metadata directory.
func ValidatePath(p string) error {
	if p == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidRequest)
	}
	if strings.ContainsAny(p, "\\\n\r\x00") {
		return fmt.Errorf("%w: path %q contains forbidden characters", ErrInvalidRequest, p)
	}
	if path.IsAbs(p) || path.Clean(p) != p || p == "." || p == ".." || strings.HasPrefix(p, "../") {
		return fmt.Errorf("%w: path %q must be clean and relative", ErrInvalidRequest, p)
	}
	if first, _, _ := strings.Cut(p, "/"); first == MetaDirName {
		return fmt.Errorf("%w: path %q is inside %s", ErrInvalidRequest, p, MetaDirName)
	}
	return nil
}
