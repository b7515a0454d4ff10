package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/merge"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
	"github.com/klauern/docsync/internal/versions"
)

// Reconciler resolves a batch of client file operations against the remote
// manifest and applies the clean ones to the remote tree.
type Reconciler struct {
	tree   *tree.Dir
	merger *merge.Merger
}

// NewReconciler creates a reconciler writing to t.
func NewReconciler(t *tree.Dir, m *merge.Merger) *Reconciler {
	if m == nil {
		m = merge.NewMerger()
	}
	return &Reconciler{tree: t, merger: m}
}

// Outcome is the result of reconciling one batch.
type Outcome struct {
	// Files holds one response per resolved request file, in request order.
	// Deletes of paths the remote no longer has are omitted.
	Files []model.SyncResponseFile

	// Pending holds the edits to append, keyed by path.
	Pending map[string]history.PendingEdit

	// Contents holds the bytes each pending non-delete edit stores.
	Contents map[string][]byte

	journal *journal
}

// Rollback undoes the tree mutations (and version writes) of the batch.
func (o *Outcome) Rollback(ctx context.Context) error {
	return o.journal.rollback(ctx)
}

// StoreVersions writes the content of every non-delete entry to vs.
func (o *Outcome) StoreVersions(ctx context.Context, vs *versions.Store, entries []history.Entry) error {
	for _, e := range entries {
		if e.Edit.IsDeleted() {
			continue
		}
		content, ok := o.Contents[e.Path]
		if !ok {
			return fmt.Errorf("no content staged for %s", e.Path)
		}
		if err := o.journal.writeVersion(ctx, vs, e.Path, e.Edit.Version, content); err != nil {
			return err
		}
	}
	return nil
}

// Conflicts returns the number of conflicted responses.
func (o *Outcome) Conflicts() int {
	n := 0
	for _, f := range o.Files {
		if f.IsConflicted() {
			n++
		}
	}
	return n
}

// Reconcile resolves files against manifest. Decisions are taken against the
// live view of the manifest, so a path whose latest edit is a delete counts
// as absent. Version contents come from src.
//
// On an I/O fault every mutation made so far is undone and the error is
// returned.
func (r *Reconciler) Reconcile(ctx context.Context, files []model.SyncRequestFile, manifest history.Manifest, src ContentSource) (*Outcome, error) {
	out := &Outcome{
		Pending:  make(map[string]history.PendingEdit),
		Contents: make(map[string][]byte),
		journal:  newJournal(r.tree),
	}

	for _, f := range files {
		resp, ok, err := r.reconcileFile(ctx, f, manifest, src, out)
		if err != nil {
			if rbErr := out.Rollback(ctx); rbErr != nil {
				err = errors.Join(err, rbErr)
			}
			return nil, fmt.Errorf("failed to reconcile %s: %w", f.Path, err)
		}
		if !ok {
			logging.WithContext(ctx).Debug("delete of absent path ignored", logging.Path(f.Path))
			continue
		}
		logging.WithContext(ctx).Debug("reconciled file",
			logging.Path(f.Path),
			logging.Operation(string(f.Action)),
			logging.Status(string(resp.Status)),
		)
		out.Files = append(out.Files, resp)
	}
	return out, nil
}

func (r *Reconciler) reconcileFile(ctx context.Context, f model.SyncRequestFile, manifest history.Manifest, src ContentSource, out *Outcome) (model.SyncResponseFile, bool, error) {
	switch f.Action {
	case model.ActionAdd:
		resp, err := r.add(ctx, f, manifest, out)
		return resp, true, err
	case model.ActionUpdate:
		resp, err := r.update(ctx, f, manifest, src, out)
		return resp, true, err
	case model.ActionDelete:
		return r.delete(ctx, f, manifest, src, out)
	default:
		return model.SyncResponseFile{}, false, fmt.Errorf("%w: unknown action %q", model.ErrInvalidRequest, f.Action)
	}
}

func respond(f model.SyncRequestFile, status model.SyncStatus, content []byte) model.SyncResponseFile {
	return model.SyncResponseFile{Action: f.Action, Path: f.Path, Status: status, Content: content}
}

func (r *Reconciler) add(ctx context.Context, f model.SyncRequestFile, manifest history.Manifest, out *Outcome) (model.SyncResponseFile, error) {
	if _, ok := manifest.Lookup(f.Path); ok {
		return respond(f, model.CloneAddedRemoteAdded, f.Content), nil
	}
	if err := out.journal.writeTree(ctx, f.Path, f.Content); err != nil {
		return model.SyncResponseFile{}, err
	}
	out.queue(f, model.Added, f.Content)
	return respond(f, model.NoConflict, f.Content), nil
}

func (r *Reconciler) update(ctx context.Context, f model.SyncRequestFile, manifest history.Manifest, src ContentSource, out *Outcome) (model.SyncResponseFile, error) {
	remote, ok := manifest.Lookup(f.Path)
	if !ok {
		return respond(f, model.CloneEditedRemoteDeleted, f.Content), nil
	}

	if remote.Version == f.Version {
		if err := out.journal.writeTree(ctx, f.Path, f.Content); err != nil {
			return model.SyncResponseFile{}, err
		}
		out.queue(f, model.Updated, f.Content)
		return respond(f, model.NoConflict, f.Content), nil
	}

	ancestor, err := src.Read(ctx, f.Path, f.Version)
	if err != nil {
		if errors.Is(err, versions.ErrNotFound) {
			logging.WithContext(ctx).Debug("ancestor missing, cannot merge", logging.Path(f.Path), logging.Version(f.Version))
			return respond(f, model.RegularConflict, f.Content), nil
		}
		return model.SyncResponseFile{}, err
	}
	theirs, err := src.Read(ctx, f.Path, remote.Version)
	if err != nil {
		if errors.Is(err, versions.ErrNotFound) {
			logging.WithContext(ctx).Warn("remote version content missing", logging.Path(f.Path), logging.Version(remote.Version))
			return respond(f, model.RegularConflict, f.Content), nil
		}
		return model.SyncResponseFile{}, err
	}

	result, err := r.merger.Merge(ancestor, f.Content, theirs)
	if err != nil {
		// not text: nothing to merge
		logging.WithContext(ctx).Debug("merge not attempted", logging.Path(f.Path), logging.Err(err))
		return respond(f, model.RegularConflict, f.Content), nil
	}
	if !result.Clean {
		return respond(f, model.RegularConflict, result.Content), nil
	}

	if err := out.journal.writeTree(ctx, f.Path, result.Content); err != nil {
		return model.SyncResponseFile{}, err
	}
	out.queue(f, model.Updated, result.Content)
	return respond(f, model.NoConflict, result.Content), nil
}

func (r *Reconciler) delete(ctx context.Context, f model.SyncRequestFile, manifest history.Manifest, src ContentSource, out *Outcome) (model.SyncResponseFile, bool, error) {
	remote, ok := manifest.Lookup(f.Path)
	if !ok {
		return model.SyncResponseFile{}, false, nil
	}

	if remote.Version > f.Version {
		content, err := src.Read(ctx, f.Path, remote.Version)
		if errors.Is(err, versions.ErrNotFound) {
			content, err = r.tree.Read(ctx, f.Path)
		}
		if err != nil {
			return model.SyncResponseFile{}, false, err
		}
		return respond(f, model.CloneDeletedRemoteEdited, content), true, nil
	}

	if err := out.journal.removeTree(ctx, f.Path); err != nil {
		return model.SyncResponseFile{}, false, err
	}
	out.queue(f, model.Deleted, nil)
	return respond(f, model.NoConflict, nil), true, nil
}

func (o *Outcome) queue(f model.SyncRequestFile, op model.FileOperation, content []byte) {
	o.Pending[f.Path] = history.PendingEdit{Operation: op, SrcCR: f.SrcCR}
	if !op.IsDeleted() {
		o.Contents[f.Path] = content
	}
}
