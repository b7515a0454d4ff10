package backup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stepClock returns a clock that advances one minute per call.
func stepClock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	m := New(filepath.Join(t.TempDir(), "backups"))
	m.now = stepClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	return m
}

func TestCreate(t *testing.T) {
	m := newTestManager(t)
	content := []byte("# Notes\n\nsome text\n")

	meta, err := m.Create("docs/notes.md", content, Options{
		Package:     "site",
		Reason:      "overwrite",
		Description: "before sync",
	})
	require.NoError(t, err)

	assert.Equal(t, "site", meta.Package)
	assert.Equal(t, "docs/notes.md", meta.SourcePath)
	assert.Equal(t, "overwrite", meta.Reason)
	assert.Len(t, meta.Hash, 64)
	assert.Equal(t, int64(len(content)), meta.Size)
	assert.Equal(t, ".md", filepath.Ext(meta.BackupPath))

	onDisk, err := os.ReadFile(meta.BackupPath)
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	index, err := m.LoadIndex()
	require.NoError(t, err)
	assert.Contains(t, index.Backups, meta.ID)
	assert.Equal(t, IndexVersion, index.Version)
}

func TestCreateFromFile(t *testing.T) {
	m := newTestManager(t)
	src := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o600))

	meta, err := m.CreateFromFile(src, "a.txt", Options{})
	require.NoError(t, err)
	assert.Equal(t, "a.txt", meta.SourcePath)

	_, err = m.CreateFromFile(filepath.Join(t.TempDir(), "missing"), "missing", Options{})
	assert.Error(t, err)
}

func TestListNewestFirstAndFiltered(t *testing.T) {
	m := newTestManager(t)
	first, err := m.Create("a.md", []byte("1"), Options{})
	require.NoError(t, err)
	second, err := m.Create("b.md", []byte("2"), Options{})
	require.NoError(t, err)
	third, err := m.Create("a.md", []byte("3"), Options{})
	require.NoError(t, err)

	all, err := m.List("")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	onlyA, err := m.List("a.md")
	require.NoError(t, err)
	require.Len(t, onlyA, 2)
	assert.Equal(t, third.ID, onlyA[0].ID)

	none, err := m.List("zzz.md")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestRestore(t *testing.T) {
	m := newTestManager(t)
	meta, err := m.Create("a.md", []byte("original"), Options{})
	require.NoError(t, err)

	target := filepath.Join(t.TempDir(), "nested", "a.md")
	require.NoError(t, m.Restore(meta.ID, target))

	got, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(got))

	assert.ErrorIs(t, m.Restore("nope", target), ErrBackupNotFound)
}

func TestRestoreDetectsCorruption(t *testing.T) {
	m := newTestManager(t)
	meta, err := m.Create("a.md", []byte("original"), Options{})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(meta.BackupPath, []byte("tampered"), 0o600))

	err = m.Restore(meta.ID, filepath.Join(t.TempDir(), "a.md"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hash mismatch")
}

func TestDelete(t *testing.T) {
	m := newTestManager(t)
	meta, err := m.Create("a.md", []byte("x"), Options{})
	require.NoError(t, err)

	require.NoError(t, m.Delete(meta.ID))
	_, err = os.Stat(meta.BackupPath)
	assert.True(t, os.IsNotExist(err))

	list, err := m.List("")
	require.NoError(t, err)
	assert.Empty(t, list)

	assert.ErrorIs(t, m.Delete(meta.ID), ErrBackupNotFound)
}

func TestVerify(t *testing.T) {
	m := newTestManager(t)
	meta, err := m.Create("a.md", []byte("intact"), Options{})
	require.NoError(t, err)

	require.NoError(t, m.Verify(meta.ID))

	require.NoError(t, os.WriteFile(meta.BackupPath, []byte("changed"), 0o600))
	assert.Error(t, m.Verify(meta.ID))

	require.NoError(t, os.Remove(meta.BackupPath))
	err = m.Verify(meta.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")

	assert.ErrorIs(t, m.Verify("unknown"), ErrBackupNotFound)
}

func TestLoadIndex(t *testing.T) {
	t.Run("missing index is empty", func(t *testing.T) {
		m := newTestManager(t)
		index, err := m.LoadIndex()
		require.NoError(t, err)
		assert.Empty(t, index.Backups)
	})

	t.Run("malformed index", func(t *testing.T) {
		m := newTestManager(t)
		require.NoError(t, os.MkdirAll(m.Dir(), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), IndexFilename), []byte("{not json"), 0o600))
		_, err := m.LoadIndex()
		assert.Error(t, err)
	})

	t.Run("null backups map", func(t *testing.T) {
		m := newTestManager(t)
		require.NoError(t, os.MkdirAll(m.Dir(), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(m.Dir(), IndexFilename), []byte(`{"version":"1.0","backups":null}`), 0o600))
		index, err := m.LoadIndex()
		require.NoError(t, err)
		assert.NotNil(t, index.Backups)
	})
}
