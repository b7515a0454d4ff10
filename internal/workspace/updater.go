package workspace

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/klauern/docsync/internal/backup"
	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/versions"
)

// Progress receives one step per history file and response file applied.
type Progress interface {
	Add(n int) error
}

// Updater applies remote responses to a working copy.
type Updater struct {
	// Backups receives local content before it is overwritten or removed.
	// Nil disables backups.
	Backups *backup.Manager
	// SaveConflicts keeps the remote side of conflicted files under the
	// metadata directory.
	SaveConflicts bool
	// Progress is optional.
	Progress Progress
}

// NewUpdater returns an updater that backs up into backups.
func NewUpdater(backups *backup.Manager) *Updater {
	return &Updater{Backups: backups, SaveConflicts: true}
}

// Apply writes a sync response into ws: non-conflicted files are written or
// removed, history files land in the mirror, the ledger is replaced and
// baselines move to the post-sync manifest. Conflicted files are left
// untouched and keep their old baseline.
func (u *Updater) Apply(ctx context.Context, ws *Workspace, resp *model.SyncResponse) (*ApplyResult, error) {
	defer logging.Timer("apply")()
	log := logging.WithContext(ctx).With(logging.Package(ws.PackageName))

	manifest, err := parseLatest(resp.Latest)
	if err != nil {
		return nil, err
	}
	for _, f := range resp.Files {
		if err := model.ValidatePath(f.Path); err != nil {
			return nil, fmt.Errorf("remote returned a bad path: %w", err)
		}
	}
	for _, h := range resp.DotHistory {
		if _, err := historyKey(h.Path); err != nil {
			return nil, err
		}
	}

	result := &ApplyResult{}
	if err := u.mirror(ctx, ws, resp.DotHistory, result); err != nil {
		return nil, err
	}

	conflicted := make(map[string]struct{})
	for _, f := range resp.Files {
		fr, err := u.applyFile(ctx, ws, f)
		if err != nil {
			return nil, err
		}
		if fr.Action == ActionConflict {
			conflicted[f.Path] = struct{}{}
			log.Warn("file conflicted", logging.Path(f.Path), logging.Status(string(f.Status)))
		} else {
			log.Debug("file applied", logging.Path(f.Path), logging.Operation(string(fr.Action)))
		}
		result.Files = append(result.Files, fr)
		u.step()
	}

	if err := ws.writeLedger(resp.Latest); err != nil {
		return nil, err
	}

	for p, e := range manifest {
		if _, skip := conflicted[p]; skip || e.IsDeleted() {
			continue
		}
		ws.SetEntry(e.WorkspaceEntry(p))
	}
	for _, f := range resp.Files {
		if _, skip := conflicted[f.Path]; !skip && f.IsDeleted() {
			ws.Forget(f.Path)
		}
	}
	if err := ws.Save(); err != nil {
		return nil, err
	}

	log.Info("response applied", logging.Count(len(result.Files)), logging.Status(result.Summary()))
	return result, nil
}

// ApplyClone populates an empty working copy from a clone response.
func (u *Updater) ApplyClone(ctx context.Context, ws *Workspace, clone *model.CloneResponse) (*ApplyResult, error) {
	defer logging.Timer("clone")()

	manifest, err := parseLatest(clone.Latest)
	if err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	if err := u.mirror(ctx, ws, clone.DotHistory, result); err != nil {
		return nil, err
	}

	for _, p := range manifest.Live().Paths() {
		content, ok := clone.Files[p]
		if !ok {
			return nil, fmt.Errorf("clone is missing live file %s", p)
		}
		fr, err := u.applyFile(ctx, ws, model.SyncResponseFile{
			Action:  model.ActionAdd,
			Path:    p,
			Status:  model.NoConflict,
			Content: content,
		})
		if err != nil {
			return nil, err
		}
		result.Files = append(result.Files, fr)
		ws.SetEntry(manifest[p].WorkspaceEntry(p))
		u.step()
	}

	if err := ws.writeLedger(clone.Latest); err != nil {
		return nil, err
	}
	if err := ws.Save(); err != nil {
		return nil, err
	}
	return result, nil
}

func parseLatest(text string) (history.Manifest, error) {
	entries, err := history.Parse(text)
	if err != nil {
		return nil, fmt.Errorf("remote returned an invalid ledger: %w", err)
	}
	manifest := history.DeriveManifest(entries)
	for p := range manifest {
		if err := model.ValidatePath(p); err != nil {
			return nil, fmt.Errorf("remote returned an invalid ledger: %w", err)
		}
	}
	return manifest, nil
}

func historyKey(key string) (string, error) {
	p, _, ok := versions.ParseKey(key)
	if !ok {
		return "", fmt.Errorf("remote returned a bad history key %q", key)
	}
	if err := model.ValidatePath(p); err != nil {
		return "", fmt.Errorf("remote returned a bad history key: %w", err)
	}
	return p, nil
}

func (u *Updater) mirror(ctx context.Context, ws *Workspace, files []model.HistoryFile, result *ApplyResult) error {
	for _, h := range files {
		if _, err := historyKey(h.Path); err != nil {
			return err
		}
		p, v, _ := versions.ParseKey(h.Path)
		if err := ws.mirror.Write(ctx, p, v, h.Content); err != nil {
			return err
		}
		result.HistoryFiles++
		u.step()
	}
	return nil
}

func (u *Updater) applyFile(ctx context.Context, ws *Workspace, f model.SyncResponseFile) (FileResult, error) {
	fr := FileResult{Path: f.Path, Status: f.Status}

	if f.IsConflicted() {
		fr.Action = ActionConflict
		if u.SaveConflicts && len(f.Content) > 0 {
			copyPath := filepath.Join(util.ConflictsPath(ws.root), filepath.FromSlash(f.Path))
			if err := util.WriteFileAtomic(copyPath, f.Content, tree.FilePerm); err != nil {
				return fr, fmt.Errorf("failed to save conflict copy of %s: %w", f.Path, err)
			}
			fr.ConflictCopy = copyPath
		}
		return fr, nil
	}

	local, err := ws.tree.Read(ctx, f.Path)
	exists := err == nil
	if err != nil && !errors.Is(err, tree.ErrNotFound) {
		return fr, err
	}

	if f.IsDeleted() {
		if !exists {
			fr.Action = ActionUnchanged
			return fr, nil
		}
		if fr.BackupID, err = u.backup(ws, f.Path, local, "delete"); err != nil {
			return fr, err
		}
		if err := ws.tree.Remove(ctx, f.Path); err != nil {
			return fr, err
		}
		fr.Action = ActionRemoved
		return fr, nil
	}

	if exists && bytes.Equal(local, f.Content) {
		fr.Action = ActionUnchanged
		return fr, nil
	}
	if exists {
		if fr.BackupID, err = u.backup(ws, f.Path, local, "overwrite"); err != nil {
			return fr, err
		}
	}
	if err := ws.tree.Write(ctx, f.Path, f.Content); err != nil {
		return fr, err
	}
	fr.Action = ActionWritten
	return fr, nil
}

func (u *Updater) backup(ws *Workspace, p string, content []byte, reason string) (string, error) {
	if u.Backups == nil {
		return "", nil
	}
	meta, err := u.Backups.Create(p, content, backup.Options{Package: ws.PackageName, Reason: reason})
	if err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", p, err)
	}
	return meta.ID, nil
}

func (u *Updater) step() {
	if u.Progress != nil {
		_ = u.Progress.Add(1)
	}
}
