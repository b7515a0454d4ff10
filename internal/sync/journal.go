package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/klauern/docsync/internal/tree"
	"github.com/klauern/docsync/internal/versions"
)

// step undoes one mutation.
type step struct {
	path    string
	prior   []byte
	existed bool

	// version is set for version-file writes.
	version int32
}

// journal records the mutations of a batch so they can be undone.
type journal struct {
	tree     *tree.Dir
	versions *versions.Store
	steps    []step
}

func newJournal(t *tree.Dir) *journal {
	return &journal{tree: t}
}

func (j *journal) snapshot(ctx context.Context, p string) (step, error) {
	prior, err := j.tree.Read(ctx, p)
	switch {
	case err == nil:
		return step{path: p, prior: prior, existed: true}, nil
	case errors.Is(err, tree.ErrNotFound):
		return step{path: p}, nil
	default:
		return step{}, err
	}
}

// writeTree replaces p in the tree.
func (j *journal) writeTree(ctx context.Context, p string, content []byte) error {
	s, err := j.snapshot(ctx, p)
	if err != nil {
		return err
	}
	if err := j.tree.Write(ctx, p, content); err != nil {
		return err
	}
	j.steps = append(j.steps, s)
	return nil
}

// removeTree deletes p from the tree.
func (j *journal) removeTree(ctx context.Context, p string) error {
	s, err := j.snapshot(ctx, p)
	if err != nil {
		return err
	}
	if !s.existed {
		return nil
	}
	if err := j.tree.Remove(ctx, p); err != nil {
		return err
	}
	j.steps = append(j.steps, s)
	return nil
}

// writeVersion stores content as version of p.
func (j *journal) writeVersion(ctx context.Context, vs *versions.Store, p string, version int32, content []byte) error {
	j.versions = vs
	if err := vs.Write(ctx, p, version, content); err != nil {
		return err
	}
	j.steps = append(j.steps, step{path: p, version: version})
	return nil
}

// rollback undoes every recorded mutation, newest first. It keeps going past
// failures and reports all of them.
func (j *journal) rollback(ctx context.Context) error {
	// undo must run even when the batch was cancelled
	ctx = context.WithoutCancel(ctx)

	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		s := j.steps[i]
		var err error
		switch {
		case s.version > 0:
			err = j.versions.Remove(ctx, s.path, s.version)
		case s.existed:
			err = j.tree.Write(ctx, s.path, s.prior)
		default:
			err = j.tree.Remove(ctx, s.path)
		}
		if err != nil {
			errs = append(errs, err)
		}
	}
	j.steps = nil
	if len(errs) > 0 {
		return fmt.Errorf("rollback incomplete: %w", errors.Join(errs...))
	}
	return nil
}

// size returns the number of recorded mutations.
func (j *journal) size() int {
	return len(j.steps)
}
