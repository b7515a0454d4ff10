package sync

import (
	"context"
	"errors"
	gosync "sync"

	"golang.org/x/sync/errgroup"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/versions"
)

// ContentSource provides the stored content of a path at a version. It
// returns an error wrapping versions.ErrNotFound when the version has no
// content.
type ContentSource interface {
	Read(ctx context.Context, path string, version int32) ([]byte, error)
}

// prefetched serves version contents fetched ahead of the package lock and
// falls back to the version store for anything else. Only hits are kept: a
// version missing at prefetch time may have been written since.
type prefetched struct {
	store *versions.Store

	mu      gosync.Mutex
	content map[string][]byte
}

func newPrefetched(store *versions.Store) *prefetched {
	return &prefetched{store: store, content: make(map[string][]byte)}
}

// Read implements ContentSource.
func (p *prefetched) Read(ctx context.Context, path string, version int32) ([]byte, error) {
	key := versions.StorageKey(path, version)
	p.mu.Lock()
	data, ok := p.content[key]
	p.mu.Unlock()
	if ok {
		return data, nil
	}
	return p.store.ReadKey(ctx, key)
}

// Len returns the number of prefetched versions.
func (p *prefetched) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.content)
}

func (p *prefetched) fetch(ctx context.Context, path string, version int32) error {
	key := versions.StorageKey(path, version)
	p.mu.Lock()
	_, ok := p.content[key]
	p.mu.Unlock()
	if ok {
		return nil
	}

	data, err := p.store.ReadKey(ctx, key)
	if err != nil {
		if errors.Is(err, versions.ErrNotFound) {
			return nil
		}
		return err
	}
	p.mu.Lock()
	p.content[key] = data
	p.mu.Unlock()
	return nil
}

// needed lists the (path, version) pairs the reconciler will read for files
// when run against manifest.
func needed(files []model.SyncRequestFile, manifest history.Manifest) []history.Entry {
	var out []history.Entry
	for _, f := range files {
		remote, ok := manifest.Lookup(f.Path)
		if !ok {
			continue
		}
		switch f.Action {
		case model.ActionUpdate:
			if remote.Version != f.Version {
				out = append(out,
					history.Entry{Path: f.Path, Edit: model.FileEdit{Version: f.Version}},
					history.Entry{Path: f.Path, Edit: model.FileEdit{Version: remote.Version}},
				)
			}
		case model.ActionDelete:
			if remote.Version > f.Version {
				out = append(out, history.Entry{Path: f.Path, Edit: model.FileEdit{Version: remote.Version}})
			}
		}
	}
	return out
}

// prefetch concurrently reads every version the batch is expected to need.
func prefetch(ctx context.Context, store *versions.Store, files []model.SyncRequestFile, manifest history.Manifest, limit int) (*prefetched, error) {
	p := newPrefetched(store)
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for _, e := range needed(files, manifest) {
		if e.Edit.Version < 1 {
			continue
		}
		g.Go(func() error {
			return p.fetch(gctx, e.Path, e.Edit.Version)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return p, nil
}
