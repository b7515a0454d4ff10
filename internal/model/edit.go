package model

import "time"

// FileEdit is one entry in a file's derived state. Versions are assigned by the
// remote when the edit is appended and never change afterwards.
type FileEdit struct {
	Version   int32         `json:"version"`
	Operation FileOperation `json:"operation"`
	Timestamp time.Time     `json:"timestamp,omitzero"`
	Author    string        `json:"author,omitempty"`
	Message   string        `json:"message,omitempty"`
	// SrcCR is the change request the edit originated from, for provenance only.
	SrcCR *int `json:"src_cr,omitempty"`
}

// IsDeleted reports whether the edit removed the file.
func (e FileEdit) IsDeleted() bool {
	return e.Operation.IsDeleted()
}

// WorkspaceEntry converts the edit into a synchronized baseline for path.
func (e FileEdit) WorkspaceEntry(path string) WorkspaceEntry {
	version := e.Version
	return WorkspaceEntry{
		Path:    path,
		Version: &version,
	}
}
