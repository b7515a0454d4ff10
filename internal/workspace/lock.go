package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/klauern/docsync/internal/util"
)

// ErrLocked is returned when another sync holds the working copy.
var ErrLocked = errors.New("working copy is locked by another sync")

const (
	// LockTimeout bounds how long Lock waits for a running sync.
	LockTimeout    = 2 * time.Second
	lockRetryDelay = 50 * time.Millisecond
	lockDirPerm    = 0o750
)

// Lock takes the working copy's file lock. The returned func releases it.
func (w *Workspace) Lock(ctx context.Context) (func() error, error) {
	return lockRoot(ctx, w.root)
}

// Open locks the working copy at root and then loads it, so the baselines
// it returns stay current until release is called.
func Open(ctx context.Context, root string) (ws *Workspace, release func() error, err error) {
	if !util.FileExists(util.WorkspaceFilePath(root)) {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotInitialized, root)
	}
	release, err = lockRoot(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	ws, err = Load(root)
	if err != nil {
		_ = release()
		return nil, nil, err
	}
	return ws, release, nil
}

// Create locks root and then initializes a working copy there.
func Create(ctx context.Context, root, packageName, remote string) (ws *Workspace, release func() error, err error) {
	release, err = lockRoot(ctx, root)
	if err != nil {
		return nil, nil, err
	}
	ws, err = Init(root, packageName, remote)
	if err != nil {
		_ = release()
		return nil, nil, err
	}
	return ws, release, nil
}

func lockRoot(ctx context.Context, root string) (func() error, error) {
	path := util.LockPath(root)
	if err := os.MkdirAll(filepath.Dir(path), lockDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, LockTimeout)
	defer cancel()

	fl := flock.New(path)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("failed to lock working copy: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}
