package backup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauern/docsync/internal/util"
)

const (
	// IndexVersion is written into every saved index.
	IndexVersion = "1.0"
	// IndexFilename names the index inside the backup directory.
	IndexFilename = "index.json"
)

// Metadata describes one stored backup.
type Metadata struct {
	// ID sorts by creation time and ends with a content hash prefix.
	ID string `json:"id"`
	// SourcePath is the slash separated working copy path the content came from.
	SourcePath string `json:"source_path"`
	BackupPath string `json:"backup_path"`
	Package    string `json:"package,omitempty"`
	// Reason is "overwrite" or "delete".
	Reason      string    `json:"reason,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	// Hash is the hex SHA-256 of the backed up content.
	Hash string `json:"hash"`
	Size int64  `json:"size"`
}

// Index records every backup by ID.
type Index struct {
	Version string              `json:"version"`
	Updated time.Time           `json:"updated"`
	Backups map[string]Metadata `json:"backups"`
}

func (idx *Index) lookup(id string) (Metadata, error) {
	meta, ok := idx.Backups[id]
	if !ok {
		return Metadata{}, fmt.Errorf("%w: %s", ErrBackupNotFound, id)
	}
	return meta, nil
}

// Newest returns backups newest first. A non-empty source keeps only the
// backups of that working copy path.
func (idx *Index) Newest(source string) []Metadata {
	out := make([]Metadata, 0, len(idx.Backups))
	for _, meta := range idx.Backups {
		if source == "" || meta.SourcePath == source {
			out = append(out, meta)
		}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(backups []Metadata) {
	sort.SliceStable(backups, func(i, j int) bool {
		if backups[i].CreatedAt.Equal(backups[j].CreatedAt) {
			return backups[i].ID > backups[j].ID
		}
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})
}

// LoadIndex reads the index. A missing index is empty.
func (m *Manager) LoadIndex() (*Index, error) {
	data, err := os.ReadFile(filepath.Join(m.dir, IndexFilename)) // #nosec G304 - inside the backup directory
	switch {
	case os.IsNotExist(err):
		return &Index{Version: IndexVersion, Updated: m.now(), Backups: map[string]Metadata{}}, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read backup index: %w", err)
	}

	idx := &Index{}
	if err := json.Unmarshal(data, idx); err != nil {
		return nil, fmt.Errorf("failed to parse backup index: %w", err)
	}
	if idx.Backups == nil {
		idx.Backups = map[string]Metadata{}
	}
	return idx, nil
}

// SaveIndex replaces the index on disk atomically.
func (m *Manager) SaveIndex(idx *Index) error {
	idx.Version = IndexVersion
	idx.Updated = m.now()
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup index: %w", err)
	}
	if err := util.WriteFileAtomic(filepath.Join(m.dir, IndexFilename), data, BackupFilePerm); err != nil {
		return fmt.Errorf("failed to write backup index: %w", err)
	}
	return nil
}
