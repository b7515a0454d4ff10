package model

import "fmt"

// SyncStatus classifies how a single file resolved during a sync. Every
// divergence shape that Add/Update/Delete against a present, absent, edited
// or deleted remote file can produce maps to exactly one value.
type SyncStatus string

const (
	// NoConflict means the file was applied (or merged) cleanly.
	NoConflict SyncStatus = "NoConflict"

	// RegularConflict means both sides edited the file and the edits could not
	// be merged, or the file is not text.
	RegularConflict SyncStatus = "RegularConflict"

	// CloneAddedRemoteAdded means both sides added the same path.
	CloneAddedRemoteAdded SyncStatus = "CloneAddedRemoteAdded"

	// CloneEditedRemoteDeleted means the clone edited a file the remote deleted.
	CloneEditedRemoteDeleted SyncStatus = "CloneEditedRemoteDeleted"

	// CloneDeletedRemoteEdited means the clone deleted a file the remote edited.
	CloneDeletedRemoteEdited SyncStatus = "CloneDeletedRemoteEdited"
)

// AllSyncStatuses returns every status value.
func AllSyncStatuses() []SyncStatus {
	return []SyncStatus{
		NoConflict,
		RegularConflict,
		CloneAddedRemoteAdded,
		CloneEditedRemoteDeleted,
		CloneDeletedRemoteEdited,
	}
}

// IsValid returns true if the status is recognized.
func (s SyncStatus) IsValid() bool {
	switch s {
	case NoConflict, RegularConflict, CloneAddedRemoteAdded, CloneEditedRemoteDeleted, CloneDeletedRemoteEdited:
		return true
	default:
		return false
	}
}

// IsConflict reports whether the status requires manual resolution.
func (s SyncStatus) IsConflict() bool {
	switch s {
	case NoConflict:
		return false
	case RegularConflict, CloneAddedRemoteAdded, CloneEditedRemoteDeleted, CloneDeletedRemoteEdited:
		return true
	default:
		panic(fmt.Sprintf("unhandled sync status %q", string(s)))
	}
}

// Describe returns a short lowercase description for user output.
func (s SyncStatus) Describe() string {
	switch s {
	case NoConflict:
		return "synced"
	case RegularConflict:
		return "edited on both sides"
	case CloneAddedRemoteAdded:
		return "added on both sides"
	case CloneEditedRemoteDeleted:
		return "edited locally, deleted remotely"
	case CloneDeletedRemoteEdited:
		return "deleted locally, edited remotely"
	default:
		return string(s)
	}
}

// UnmarshalText rejects unknown statuses so a malformed response never
// reaches the workspace updater.
func (s *SyncStatus) UnmarshalText(text []byte) error {
	status := SyncStatus(text)
	if !status.IsValid() {
		return fmt.Errorf("unknown sync status %q", string(text))
	}
	*s = status
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (s SyncStatus) MarshalText() ([]byte, error) {
	return []byte(s), nil
}
