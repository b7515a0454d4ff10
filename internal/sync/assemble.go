package sync

import (
	"context"
	"errors"
	"sort"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
)

// assemble builds the response of a sync. Reconciler responses win over
// anything the differ finds for the same path.
func (e *Engine) assemble(ctx context.Context, resolved []model.SyncResponseFile, remote, client history.Manifest, latest string) (*model.SyncResponse, error) {
	files := make(map[string]model.SyncResponseFile, len(resolved))
	for _, f := range resolved {
		files[f.Path] = f
	}

	diff := Diff(remote, client)
	diffPaths := make([]string, 0, len(diff))
	for p := range diff {
		diffPaths = append(diffPaths, p)
	}
	sort.Strings(diffPaths)

	for _, p := range diffPaths {
		if _, ok := files[p]; ok {
			continue
		}
		if diff[p].IsDeleted() {
			files[p] = model.SyncResponseFile{Action: model.ActionDelete, Path: p, Status: model.NoConflict}
			continue
		}
		content, err := e.currentContent(ctx, p, remote[p].Version)
		if err != nil {
			return nil, err
		}
		files[p] = model.SyncResponseFile{Action: model.ActionAdd, Path: p, Status: model.NoConflict, Content: content}
	}

	for _, p := range ClientOnly(remote, client) {
		if _, ok := files[p]; ok {
			continue
		}
		files[p] = model.SyncResponseFile{Action: model.ActionDelete, Path: p, Status: model.NoConflict}
	}

	resp := &model.SyncResponse{
		Files:      make([]model.SyncResponseFile, 0, len(files)),
		DotHistory: []model.HistoryFile{},
		Latest:     latest,
	}
	for _, f := range files {
		resp.Files = append(resp.Files, f)
	}
	sort.Slice(resp.Files, func(i, j int) bool { return resp.Files[i].Path < resp.Files[j].Path })

	for _, p := range diffPaths {
		known := client[p].Version
		stored, err := e.versions.ListVersions(ctx, p)
		if err != nil {
			return nil, err
		}
		for _, v := range stored {
			if v.Number <= known {
				continue
			}
			content, err := e.versions.ReadKey(ctx, v.Key)
			if err != nil {
				return nil, err
			}
			resp.DotHistory = append(resp.DotHistory, model.HistoryFile{Path: v.Key, Content: content})
		}
	}
	return resp, nil
}

// currentContent returns the tree bytes of p, falling back to the stored
// version when the tree has lost the file.
func (e *Engine) currentContent(ctx context.Context, p string, version int32) ([]byte, error) {
	content, err := e.tree.Read(ctx, p)
	if errors.Is(err, tree.ErrNotFound) {
		return e.versions.Read(ctx, p, version)
	}
	return content, err
}
