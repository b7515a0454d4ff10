package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauern/docsync/internal/util"
)

// Store persists the edit log of one package. Append must only be called by
// the single writer holding the package lock.
type Store interface {
	// Load returns every entry in append order.
	Load(ctx context.Context) ([]Entry, error)
	// Append adds entries to the end of the log atomically: either all of
	// them are recorded or none are.
	Append(ctx context.Context, entries []Entry) error
	// Text returns the serialized ledger.
	Text(ctx context.Context) (string, error)
	Close() error
}

// Backend names a Store implementation.
type Backend string

const (
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// IsValid returns true if the backend is recognized
func (b Backend) IsValid() bool {
	switch b {
	case BackendFile, BackendSQLite:
		return true
	default:
		return false
	}
}

const (
	// LedgerFilename is the ledger file of the file backend.
	LedgerFilename = "latest.ledger"
	// DatabaseFilename is the database file of the sqlite backend.
	DatabaseFilename = "history.db"
)

// Open opens the store for backend inside dir.
func Open(backend Backend, dir string) (Store, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(filepath.Join(dir, LedgerFilename)), nil
	case BackendSQLite:
		return OpenSQLiteStore(filepath.Join(dir, DatabaseFilename))
	default:
		return nil, fmt.Errorf("unknown history backend %q", backend)
	}
}

// FileStore keeps the log as a ledger text file that is rewritten atomically
// on every append.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the ledger file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the ledger file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load implements Store.
func (s *FileStore) Load(ctx context.Context) ([]Entry, error) {
	text, err := s.read()
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// Append implements Store.
func (s *FileStore) Append(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	existing, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if err := checkAppend(DeriveManifest(existing), entries); err != nil {
		return err
	}
	all := append(existing, entries...)
	if err := util.WriteFileAtomic(s.path, []byte(Serialize(all)), 0o644); err != nil {
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	return nil
}

// Text implements Store. A missing ledger reads as an empty one.
func (s *FileStore) Text(ctx context.Context) (string, error) {
	text, err := s.read()
	if err != nil {
		return "", err
	}
	if text == "" {
		return Serialize(nil), nil
	}
	return text, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read() (string, error) {
	// #nosec G304 - ledger path is derived from the package directory
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read ledger: %w", err)
	}
	return string(data), nil
}
