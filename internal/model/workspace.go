package model

// WorkspaceEntry is the client's belief about the last version of a path it
// synchronized. A nil Version means the path was added locally and has never
// round-tripped through the remote.
type WorkspaceEntry struct {
	Path    string `json:"path"`
	Version *int32 `json:"version,omitempty"`
	Deleted *bool  `json:"deleted,omitempty"`
}

// IsNew reports whether the entry has never been synchronized.
func (w WorkspaceEntry) IsNew() bool {
	return w.Version == nil
}

// IsDeleted reports whether the entry was marked as locally deleted.
func (w WorkspaceEntry) IsDeleted() bool {
	return w.Deleted != nil && *w.Deleted
}

// BaseVersion returns the synchronized version, or 0 for new entries.
func (w WorkspaceEntry) BaseVersion() int32 {
	if w.Version == nil {
		return 0
	}
	return *w.Version
}
