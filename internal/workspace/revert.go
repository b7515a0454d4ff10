package workspace

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
)

// ErrNotTracked is returned for paths that are neither in the tree nor known
// to the remote.
var ErrNotTracked = errors.New("path is not tracked")

// Revert discards local changes to p and adopts the remote state as of the
// last sync: the mirrored content of the latest version, or no file when the
// remote never had p or deleted it.
func (u *Updater) Revert(ctx context.Context, ws *Workspace, p string) (FileResult, error) {
	manifest, err := ws.Manifest()
	if err != nil {
		return FileResult{}, err
	}

	local, err := ws.tree.Read(ctx, p)
	exists := err == nil
	if err != nil && !errors.Is(err, tree.ErrNotFound) {
		return FileResult{}, err
	}

	fr := FileResult{Path: p}
	if edit, ok := manifest.Lookup(p); ok {
		content, err := ws.mirror.Read(ctx, p, edit.Version)
		if err != nil {
			return fr, fmt.Errorf("no mirrored copy of %s version %d: %w", p, edit.Version, err)
		}
		fr, err = u.applyFile(ctx, ws, contentResponse(p, content))
		if err != nil {
			return fr, err
		}
		ws.SetEntry(edit.WorkspaceEntry(p))
	} else {
		if _, tracked := ws.Entry(p); !tracked && !exists {
			return fr, fmt.Errorf("%w: %s", ErrNotTracked, p)
		}
		if exists {
			if fr.BackupID, err = u.backup(ws, p, local, "revert"); err != nil {
				return fr, err
			}
			if err := ws.tree.Remove(ctx, p); err != nil {
				return fr, err
			}
			fr.Action = ActionRemoved
		} else {
			fr.Action = ActionUnchanged
		}
		ws.Forget(p)
	}

	if err := ws.Save(); err != nil {
		return fr, err
	}
	logging.WithContext(ctx).Info("reverted", logging.Package(ws.PackageName), logging.Path(p), logging.Operation(string(fr.Action)))
	return fr, nil
}

// Resolve keeps the local content of p and moves its baseline to the remote
// state as of the last sync, so the next sync sends the local file as an edit
// of the latest remote version.
func (u *Updater) Resolve(ctx context.Context, ws *Workspace, p string) error {
	manifest, err := ws.Manifest()
	if err != nil {
		return err
	}
	exists, err := ws.tree.Exists(p)
	if err != nil {
		return err
	}

	edit, live := manifest.Lookup(p)
	switch {
	case live:
		ws.SetEntry(edit.WorkspaceEntry(p))
	case exists:
		// the remote has no live copy, so the file is sent as new
		ws.Forget(p)
	default:
		if _, tracked := ws.Entry(p); !tracked {
			return fmt.Errorf("%w: %s", ErrNotTracked, p)
		}
		ws.Forget(p)
	}
	if err := ws.Save(); err != nil {
		return err
	}
	logging.WithContext(ctx).Info("resolved", logging.Package(ws.PackageName), logging.Path(p))
	return nil
}

func contentResponse(p string, content []byte) model.SyncResponseFile {
	return model.SyncResponseFile{Action: model.ActionUpdate, Path: p, Status: model.NoConflict, Content: content}
}
