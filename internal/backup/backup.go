// Package backup keeps copies of working-copy files before a sync overwrites
// or deletes them.
package backup

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauern/docsync/internal/util"
)

const (
	// BackupDirPerm is the permission for backup directories (rwxr-x---)
	BackupDirPerm = 0o750
	// BackupFilePerm is the permission for backup files (rw-r-----)
	BackupFilePerm = 0o640
)

// ErrBackupNotFound is returned for unknown backup IDs.
var ErrBackupNotFound = errors.New("backup not found")

// Options annotates a new backup.
type Options struct {
	Package     string
	Reason      string
	Description string
}

// Manager stores backups and their index under one directory.
type Manager struct {
	dir string
	now func() time.Time
}

// New returns a manager for the backups under dir.
func New(dir string) *Manager {
	return &Manager{dir: dir, now: time.Now}
}

// Dir returns the backup directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Create backs up content, which was read from relPath of the working copy.
func (m *Manager) Create(relPath string, content []byte, opts Options) (*Metadata, error) {
	hash := sha256.Sum256(content)
	hashStr := hex.EncodeToString(hash[:])

	now := m.now()
	backupID := now.Format("20060102-150405.000000-") + hashStr[:8]

	backupFilename := backupID + filepath.Ext(relPath)
	backupPath := filepath.Join(m.dir, "files", backupFilename)
	if err := os.MkdirAll(filepath.Dir(backupPath), BackupDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create backups directory: %w", err)
	}
	if err := os.WriteFile(backupPath, content, BackupFilePerm); err != nil {
		return nil, fmt.Errorf("failed to write backup file: %w", err)
	}

	metadata := &Metadata{
		ID:          backupID,
		SourcePath:  relPath,
		BackupPath:  backupPath,
		Package:     opts.Package,
		Reason:      opts.Reason,
		CreatedAt:   now,
		Hash:        hashStr,
		Size:        int64(len(content)),
		Description: opts.Description,
	}

	index, err := m.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}
	index.Backups[metadata.ID] = *metadata
	if err := m.SaveIndex(index); err != nil {
		return nil, fmt.Errorf("failed to add backup to index: %w", err)
	}
	return metadata, nil
}

// CreateFromFile backs up the file at absPath under the name relPath.
func (m *Manager) CreateFromFile(absPath, relPath string, opts Options) (*Metadata, error) {
	// #nosec G304 - absPath is inside the working copy
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file %q: %w", absPath, err)
	}
	return m.Create(relPath, content, opts)
}

// Read returns the verified content of a backup.
func (m *Manager) Read(backupID string) (*Metadata, []byte, error) {
	index, err := m.LoadIndex()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load backup index: %w", err)
	}
	metadata, err := index.lookup(backupID)
	if err != nil {
		return nil, nil, err
	}

	content, err := os.ReadFile(metadata.BackupPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read backup file: %w", err)
	}
	hash := sha256.Sum256(content)
	if hex.EncodeToString(hash[:]) != metadata.Hash {
		return nil, nil, fmt.Errorf("backup file corrupted: hash mismatch")
	}
	return &metadata, content, nil
}

// Restore writes a backup to targetPath.
func (m *Manager) Restore(backupID string, targetPath string) error {
	_, content, err := m.Read(backupID)
	if err != nil {
		return err
	}
	if err := util.WriteFileAtomic(targetPath, content, 0o644); err != nil {
		return fmt.Errorf("failed to write target file: %w", err)
	}
	return nil
}

// List returns all backups newest first, optionally only those of relPath.
func (m *Manager) List(relPath string) ([]Metadata, error) {
	index, err := m.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	return index.Newest(relPath), nil
}

// Delete deletes a backup and removes it from the index
func (m *Manager) Delete(backupID string) error {
	index, err := m.LoadIndex()
	if err != nil {
		return fmt.Errorf("failed to load backup index: %w", err)
	}
	metadata, err := index.lookup(backupID)
	if err != nil {
		return err
	}
	if err := os.Remove(metadata.BackupPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete backup file: %w", err)
	}
	delete(index.Backups, backupID)
	if err := m.SaveIndex(index); err != nil {
		return fmt.Errorf("failed to remove backup from index: %w", err)
	}
	return nil
}

// Verify checks that a backup file is intact and matches its hash
func (m *Manager) Verify(backupID string) (err error) {
	index, err := m.LoadIndex()
	if err != nil {
		return fmt.Errorf("failed to load backup index: %w", err)
	}
	metadata, err := index.lookup(backupID)
	if err != nil {
		return err
	}

	file, err := os.Open(metadata.BackupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("backup file missing: %s", metadata.BackupPath)
		}
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close backup file: %w", closeErr)
		}
	}()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Errorf("failed to read backup file: %w", err)
	}
	if got := hex.EncodeToString(hash.Sum(nil)); got != metadata.Hash {
		return fmt.Errorf("backup file corrupted: hash mismatch (expected %s, got %s)", metadata.Hash, got)
	}
	return nil
}
