package backup

import (
	"fmt"
	"time"
)

// CleanupOptions configures backup cleanup behavior
type CleanupOptions struct {
	// MaxBackups limits the number of backups to keep per file (0 = unlimited)
	MaxBackups int

	// MaxAge is the maximum age of backups to keep (0 = unlimited)
	MaxAge time.Duration

	// KeepAtLeastOne ensures at least one backup is kept per source file
	KeepAtLeastOne bool

	// DryRun previews what would be deleted without actually deleting
	DryRun bool
}

// DefaultCleanupOptions returns sensible defaults for cleanup
func DefaultCleanupOptions() CleanupOptions {
	return CleanupOptions{
		MaxBackups:     10,
		MaxAge:         30 * 24 * time.Hour,
		KeepAtLeastOne: true,
	}
}

// Cleanup removes old backups based on the specified options and returns the
// removed IDs.
func (m *Manager) Cleanup(opts CleanupOptions) ([]string, error) {
	index, err := m.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	groups := make(map[string][]Metadata)
	for _, backup := range index.Backups {
		groups[backup.SourcePath] = append(groups[backup.SourcePath], backup)
	}

	var toDelete []string
	now := m.now()
	for _, group := range groups {
		sortNewestFirst(group)

		var doomed []string
		for idx, backup := range group {
			expired := opts.MaxAge > 0 && now.Sub(backup.CreatedAt) > opts.MaxAge
			overflow := opts.MaxBackups > 0 && idx >= opts.MaxBackups
			if expired || overflow {
				doomed = append(doomed, backup.ID)
			}
		}
		// keep the newest when everything would go
		if opts.KeepAtLeastOne && len(doomed) == len(group) && len(doomed) > 0 {
			doomed = doomed[1:]
		}
		toDelete = append(toDelete, doomed...)
	}

	var deleted []string
	for _, backupID := range toDelete {
		if !opts.DryRun {
			if err := m.Delete(backupID); err != nil {
				return deleted, fmt.Errorf("failed to delete backup %q: %w", backupID, err)
			}
		}
		deleted = append(deleted, backupID)
	}
	return deleted, nil
}

// Stats contains statistics about backups
type Stats struct {
	TotalBackups int
	TotalSize    int64
	Files        int
	OldestBackup time.Time
	NewestBackup time.Time
}

// GetStats returns statistics about backups
func (m *Manager) GetStats() (*Stats, error) {
	index, err := m.LoadIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load backup index: %w", err)
	}

	stats := &Stats{TotalBackups: len(index.Backups)}
	files := make(map[string]struct{})
	for _, backup := range index.Backups {
		stats.TotalSize += backup.Size
		files[backup.SourcePath] = struct{}{}
		if stats.OldestBackup.IsZero() || backup.CreatedAt.Before(stats.OldestBackup) {
			stats.OldestBackup = backup.CreatedAt
		}
		if backup.CreatedAt.After(stats.NewestBackup) {
			stats.NewestBackup = backup.CreatedAt
		}
	}
	stats.Files = len(files)
	return stats, nil
}
