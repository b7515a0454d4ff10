package model

import "fmt"

// FileOperation classifies a single edit recorded in a file's history.
type FileOperation string

const (
	Added   FileOperation = "added"
	Updated FileOperation = "updated"
	Deleted FileOperation = "deleted"
)

// IsValid returns true if the operation is recognized
func (o FileOperation) IsValid() bool {
	switch o {
	case Added, Updated, Deleted:
		return true
	default:
		return false
	}
}

// IsDeleted reports whether the operation removed the file.
func (o FileOperation) IsDeleted() bool {
	return o == Deleted
}

// AllFileOperations returns every known operation
func AllFileOperations() []FileOperation {
	return []FileOperation{Added, Updated, Deleted}
}

// ParseFileOperation parses the ledger spelling of an operation.
func ParseFileOperation(s string) (FileOperation, error) {
	op := FileOperation(s)
	if !op.IsValid() {
		return "", fmt.Errorf("unknown file operation %q (valid: added, updated, deleted)", s)
	}
	return op, nil
}
