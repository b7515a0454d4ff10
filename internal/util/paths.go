package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/klauern/docsync/internal/model"
)

// WorkspaceDirName is the per-working-copy metadata directory.
const WorkspaceDirName = model.MetaDirName

// HomeDir returns the user's home directory
func HomeDir() string {
	home, _ := os.UserHomeDir()
	return home
}

// DocsyncConfigDir returns the user configuration directory
func DocsyncConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsync")
	}
	return filepath.Join(HomeDir(), ".config", "docsync")
}

// DocsyncConfigPath returns the default config file location
func DocsyncConfigPath() string {
	return filepath.Join(DocsyncConfigDir(), "config.yaml")
}

// DocsyncDataDir returns the default server data directory
func DocsyncDataDir() string {
	return filepath.Join(HomeDir(), ".local", "share", "docsync")
}

// MetaDir returns the metadata directory of the working copy at root
func MetaDir(root string) string {
	return filepath.Join(root, WorkspaceDirName)
}

// HistoryMirrorPath returns the local history mirror directory
func HistoryMirrorPath(root string) string {
	return filepath.Join(MetaDir(root), "history")
}

// LedgerPath returns the local copy of the remote ledger
func LedgerPath(root string) string {
	return filepath.Join(MetaDir(root), "latest.ledger")
}

// WorkspaceFilePath returns the workspace baseline file
func WorkspaceFilePath(root string) string {
	return filepath.Join(MetaDir(root), "workspace.json")
}

// BackupsPath returns the local backup directory
func BackupsPath(root string) string {
	return filepath.Join(MetaDir(root), "backups")
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if path == "~" {
		return HomeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(HomeDir(), path[2:])
	}
	return path
}

// LockPath returns the file locked while a sync runs
func LockPath(root string) string {
	return filepath.Join(MetaDir(root), "lock")
}

// ConflictsPath returns where remote copies of conflicted files are kept
func ConflictsPath(root string) string {
	return filepath.Join(MetaDir(root), "conflicts")
}
