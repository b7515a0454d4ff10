// Package tree reads and writes the files of a working tree by slash-separated
// path relative to its root.
package tree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/klauern/docsync/internal/util"
)

// ErrNotFound is returned when a path has no file in the tree.
var ErrNotFound = errors.New("file not found in tree")

// FilePerm is the permission of files written to the tree.
const FilePerm = 0o644

// Dir is a working tree rooted at a directory.
type Dir struct {
	root string
}

// New returns the tree rooted at root.
func New(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the tree's root directory.
func (d *Dir) Root() string {
	return d.root
}

// Abs returns the filesystem location of p.
func (d *Dir) Abs(p string) string {
	return filepath.Join(d.root, filepath.FromSlash(p))
}

// Read returns the content of p.
func (d *Dir) Read(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// #nosec G304 - p is a validated package path
	data, err := os.ReadFile(d.Abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		return nil, fmt.Errorf("failed to read %s: %w", p, err)
	}
	return data, nil
}

// Exists reports whether p is a regular file in the tree.
func (d *Dir) Exists(p string) (bool, error) {
	info, err := os.Stat(d.Abs(p))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat %s: %w", p, err)
	}
	return info.Mode().IsRegular(), nil
}

// Write replaces the content of p atomically.
func (d *Dir) Write(ctx context.Context, p string, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := util.WriteFileAtomic(d.Abs(p), content, FilePerm); err != nil {
		return fmt.Errorf("failed to write %s: %w", p, err)
	}
	return nil
}

// Remove deletes p and any parent directories it leaves empty. Missing files
// are not an error.
func (d *Dir) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	abs := d.Abs(p)
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove %s: %w", p, err)
	}
	root := filepath.Clean(d.root)
	for dir := filepath.Dir(abs); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		if os.Remove(dir) != nil {
			break
		}
	}
	return nil
}

// SkipFunc decides whether a path is left out of a walk. Returning true for a
// directory skips everything below it.
type SkipFunc func(p string, isDir bool) bool

// Walk returns the slash-separated paths of every regular file in the tree in
// lexical order.
func (d *Dir) Walk(ctx context.Context, skip SkipFunc) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(d.root, func(abs string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && abs == d.root {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if abs == d.root {
			return nil
		}
		rel, err := filepath.Rel(d.root, abs)
		if err != nil {
			return err
		}
		p := filepath.ToSlash(rel)
		if skip != nil && skip(p, entry.IsDir()) {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", d.root, err)
	}
	sort.Strings(paths)
	return paths, nil
}
