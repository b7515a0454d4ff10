package tree

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRemove(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir())

	require.NoError(t, d.Write(ctx, "a/b/c.md", []byte("hello")))
	got, err := d.Read(ctx, "a/b/c.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	ok, err := d.Exists("a/b/c.md")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = d.Exists("a/b")
	require.NoError(t, err)
	assert.False(t, ok, "directories are not files")

	require.NoError(t, d.Remove(ctx, "a/b/c.md"))
	_, err = d.Read(ctx, "a/b/c.md")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = os.Stat(filepath.Join(d.Root(), "a"))
	assert.True(t, os.IsNotExist(err), "empty parents should be pruned")

	_, err = os.Stat(d.Root())
	assert.NoError(t, err, "root must survive pruning")

	assert.NoError(t, d.Remove(ctx, "a/b/c.md"))
}

func TestRemoveKeepsNonEmptyParents(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir())
	require.NoError(t, d.Write(ctx, "a/one.md", []byte("1")))
	require.NoError(t, d.Write(ctx, "a/two.md", []byte("2")))

	require.NoError(t, d.Remove(ctx, "a/one.md"))
	ok, err := d.Exists("a/two.md")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWalk(t *testing.T) {
	ctx := context.Background()
	d := New(t.TempDir())
	for _, p := range []string{"z.md", "docs/b.md", "docs/a.md", ".docsync/workspace.json"} {
		require.NoError(t, d.Write(ctx, p, []byte(p)))
	}

	all, err := d.Walk(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{".docsync/workspace.json", "docs/a.md", "docs/b.md", "z.md"}, all)

	visible, err := d.Walk(ctx, func(p string, isDir bool) bool {
		return strings.HasPrefix(p, ".")
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"docs/a.md", "docs/b.md", "z.md"}, visible)
}

func TestWalkMissingRoot(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "missing"))
	paths, err := d.Walk(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
