// Package versions stores the content of every appended file version, one
// file per (path, version) under a history root.
package versions

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/klauern/docsync/internal/util"
)

// ErrNotFound is returned when a version has no stored content.
var ErrNotFound = errors.New("version not found")

// DefaultCacheSize is the number of version files kept in memory.
const DefaultCacheSize = 256

// Version is one stored version of a path.
type Version struct {
	Number int32
	Key    string
}

// Store reads and writes version files. Stored versions are immutable, so the
// read cache never needs invalidation except when a write is rolled back.
type Store struct {
	root  string
	cache *lru.Cache[string, []byte]
}

// New returns a store rooted at root. A cacheSize of zero or less disables the
// read cache.
func New(root string, cacheSize int) (*Store, error) {
	s := &Store{root: root}
	if cacheSize > 0 {
		c, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create version cache: %w", err)
		}
		s.cache = c
	}
	return s, nil
}

// Root returns the history root directory.
func (s *Store) Root() string {
	return s.root
}

// Read returns the content of p at version.
func (s *Store) Read(ctx context.Context, p string, version int32) ([]byte, error) {
	return s.ReadKey(ctx, StorageKey(p, version))
}

// ReadKey returns the content stored under key.
func (s *Store) ReadKey(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return bytes.Clone(data), nil
		}
	}

	// #nosec G304 - key is derived from a validated package path
	data, err := os.ReadFile(s.file(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return nil, fmt.Errorf("failed to read version %s: %w", key, err)
	}
	if s.cache != nil {
		s.cache.Add(key, bytes.Clone(data))
	}
	return data, nil
}

// Write stores content for p at version.
func (s *Store) Write(ctx context.Context, p string, version int32, content []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := StorageKey(p, version)
	if err := util.WriteFileAtomic(s.file(key), content, 0o644); err != nil {
		return fmt.Errorf("failed to write version %s: %w", key, err)
	}
	if s.cache != nil {
		s.cache.Add(key, bytes.Clone(content))
	}
	return nil
}

// Remove deletes the content of p at version. Missing files are ignored.
func (s *Store) Remove(ctx context.Context, p string, version int32) error {
	key := StorageKey(p, version)
	if s.cache != nil {
		s.cache.Remove(key)
	}
	if err := os.Remove(s.file(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove version %s: %w", key, err)
	}
	return nil
}

// ListVersions returns the stored versions of p in ascending order. Only the
// final extension of the name is significant, so dotted names and
// extensionless paths are both handled.
func (s *Store) ListVersions(ctx context.Context, p string) ([]Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir, stem, ext := splitName(p)
	entries, err := os.ReadDir(filepath.Join(s.root, filepath.FromSlash(dir)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list versions of %s: %w", p, err)
	}

	var out []Version
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		if v, ok := matchKey(e.Name(), stem, ext); ok {
			out = append(out, Version{Number: v, Key: dir + e.Name()})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Keys returns every stored key in lexical order.
func (s *Store) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == s.root {
				return filepath.SkipDir
			}
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if _, _, ok := ParseKey(key); ok {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk history: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *Store) file(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(path.Clean(key)))
}
