package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/docsync/internal/api"
	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/util"
)

func TestVersionVariables(t *testing.T) {
	// Version should be set (even if to "dev")
	if Version == "" {
		t.Error("Version should not be empty")
	}

	// Commit and BuildDate should have defaults
	if Commit == "" {
		t.Error("Commit should not be empty")
	}
	if BuildDate == "" {
		t.Error("BuildDate should not be empty")
	}
}

func TestConfigureLogging(t *testing.T) {
	tests := map[string]struct {
		args      []string
		wantDebug bool
		wantInfo  bool
	}{
		"no flags keeps warn level": {
			args: []string{"docsync", "version"},
		},
		"verbose flag enables info level": {
			args:     []string{"docsync", "--verbose", "version"},
			wantInfo: true,
		},
		"debug flag enables debug level": {
			args:      []string{"docsync", "--debug", "version"},
			wantDebug: true,
			wantInfo:  true,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			logging.SetDefault(logging.New(logging.Options{Output: io.Discard}))

			app := newApp()
			app.Writer = io.Discard
			require.NoError(t, app.Run(context.Background(), tt.args))

			logger := slog.Default()
			assert.Equal(t, tt.wantDebug, logger.Enabled(context.Background(), slog.LevelDebug))
			assert.Equal(t, tt.wantInfo, logger.Enabled(context.Background(), slog.LevelInfo))
		})
	}
	logging.SetDefault(logging.New(logging.DefaultOptions()))
}

func TestConfigFlagRejectsInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("output:\n  color: sometimes\n"), 0o644))

	_, err := runApp(t, "--config", path, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown color mode")
}

// runApp runs the CLI with colors off and returns what it printed.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	app := newApp()
	app.Writer = &buf
	app.ErrWriter = io.Discard
	err := app.Run(context.Background(), append([]string{"docsync", "--no-color"}, args...))
	return buf.String(), err
}

// newRemote serves an empty "docs" package over HTTP.
func newRemote(t *testing.T) string {
	t.Helper()
	registry := docsync.NewRegistry(t.TempDir(), docsync.DefaultOptions(), false)
	_, err := registry.Create("docs")
	require.NoError(t, err)

	srv := httptest.NewServer(api.NewServer(registry, api.ServerOptions{}).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = registry.Close()
	})
	return srv.URL
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestCloneSyncStatusHistory(t *testing.T) {
	remote := newRemote(t)
	alice := filepath.Join(t.TempDir(), "alice")
	bob := filepath.Join(t.TempDir(), "bob")

	out, err := runApp(t, "clone", "--remote", remote, "docs", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "Cloned docs")

	require.NoError(t, os.WriteFile(filepath.Join(alice, "guide.md"), []byte("line one\n"), 0o644))

	out, err = runApp(t, "--root", alice, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Added")
	assert.Contains(t, out, "guide.md")

	out, err = runApp(t, "--root", alice, "sync", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "DRY RUN")

	out, err = runApp(t, "--root", alice, "sync", "-m", "first draft")
	require.NoError(t, err)
	assert.Contains(t, out, "Sync complete")

	out, err = runApp(t, "--root", alice, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "No local changes")

	out, err = runApp(t, "--root", alice, "history", "guide.md")
	require.NoError(t, err)
	assert.Contains(t, out, "v1")
	assert.Contains(t, out, "added")
	assert.Contains(t, out, "first draft")

	_, err = runApp(t, "clone", "--remote", remote, "docs", bob)
	require.NoError(t, err)
	assert.Equal(t, "line one\n", readFile(t, filepath.Join(bob, "guide.md")))
}

func TestSyncConflictThenRevert(t *testing.T) {
	remote := newRemote(t)
	alice := filepath.Join(t.TempDir(), "alice")
	bob := filepath.Join(t.TempDir(), "bob")

	_, err := runApp(t, "clone", "--remote", remote, "docs", alice)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(alice, "guide.md"), []byte("line one\n"), 0o644))
	_, err = runApp(t, "--root", alice, "sync")
	require.NoError(t, err)

	_, err = runApp(t, "clone", "--remote", remote, "docs", bob)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(alice, "guide.md"), []byte("alpha\n"), 0o644))
	_, err = runApp(t, "--root", alice, "sync")
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(bob, "guide.md"), []byte("beta\n"), 0o644))
	out, err := runApp(t, "--root", bob, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 file(s) conflicted")
	assert.Contains(t, out, "guide.md")
	assert.Equal(t, "beta\n", readFile(t, filepath.Join(bob, "guide.md")))

	out, err = runApp(t, "--root", bob, "revert", "./guide.md")
	require.NoError(t, err)
	assert.Contains(t, out, "Reverted")
	assert.Equal(t, "alpha\n", readFile(t, filepath.Join(bob, "guide.md")))

	out, err = runApp(t, "--root", bob, "backup", "list", "guide.md")
	require.NoError(t, err)
	assert.Contains(t, out, "guide.md")

	out, err = runApp(t, "--root", bob, "backup", "verify")
	require.NoError(t, err)
	assert.NotContains(t, out, "hash mismatch")
}

func TestRevertUntrackedPath(t *testing.T) {
	remote := newRemote(t)
	dir := filepath.Join(t.TempDir(), "wc")
	_, err := runApp(t, "clone", "--remote", remote, "docs", dir)
	require.NoError(t, err)

	_, err = runApp(t, "--root", dir, "revert", "missing.md")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not tracked")
}

func TestCommandsRequireArguments(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]struct {
		args    []string
		wantErr string
	}{
		"clone without package": {
			args:    []string{"clone"},
			wantErr: "clone requires a package",
		},
		"revert without path": {
			args:    []string{"--root", dir, "revert"},
			wantErr: "revert requires at least one path",
		},
		"resolve without path": {
			args:    []string{"--root", dir, "resolve"},
			wantErr: "resolve requires at least one path",
		},
		"init without package": {
			args:    []string{"--root", dir, "init"},
			wantErr: "init requires a package name",
		},
		"status outside a working copy": {
			args:    []string{"--root", dir, "status"},
			wantErr: "not",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := runApp(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestInitTwice(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "--root", dir, "init", "--package", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized working copy of docs")
	assert.True(t, util.FileExists(util.WorkspaceFilePath(dir)))

	_, err = runApp(t, "--root", dir, "init", "--package", "docs")
	require.Error(t, err)
}

func TestExportWritesArchive(t *testing.T) {
	remote := newRemote(t)
	dir := filepath.Join(t.TempDir(), "wc")
	_, err := runApp(t, "clone", "--remote", remote, "docs", dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("a\n"), 0o644))
	_, err = runApp(t, "--root", dir, "sync")
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "docs.tar.gz")
	out, err := runApp(t, "--root", dir, "export", "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "Exported docs")

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestPackagesCreate(t *testing.T) {
	root := t.TempDir()
	out, err := runApp(t, "packages", "create", "--packages-root", root, "--backend", "sqlite", "handbook")
	require.NoError(t, err)
	assert.Contains(t, out, "Created package handbook")
	assert.FileExists(t, filepath.Join(root, "handbook", history.DatabaseFilename))

	_, err = runApp(t, "packages", "create", "--packages-root", root, ".hidden")
	require.Error(t, err)
}

func TestPackagesList(t *testing.T) {
	remote := newRemote(t)
	t.Setenv("DOCSYNC_CLIENT_REMOTE", remote)

	out, err := runApp(t, "packages", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docsync.toml")

	out, err := runApp(t, "config", "init", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote")
	assert.Contains(t, readFile(t, path), "[client]")

	_, err = runApp(t, "config", "init", path)
	require.Error(t, err)

	_, err = runApp(t, "config", "init", "--force", path)
	require.NoError(t, err)

	out, err = runApp(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "packages_root")
}
