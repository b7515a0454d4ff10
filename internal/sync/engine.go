package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	gosync "sync"
	"time"

	"github.com/google/uuid"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/merge"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/tree"
	"github.com/klauern/docsync/internal/versions"
)

const (
	// TreeDir holds the working tree of a package.
	TreeDir = "tree"
	// HistoryDir holds the version files of a package.
	HistoryDir = "history"
)

// Options configures an Engine.
type Options struct {
	// Backend selects the edit log store.
	Backend history.Backend

	// CacheSize is the number of version files kept in memory.
	CacheSize int

	// Concurrency bounds the number of parallel content prefetches.
	Concurrency int

	// Merger renders merge conflicts. Defaults to merge.NewMerger().
	Merger *merge.Merger
}

// DefaultOptions returns the default engine options.
func DefaultOptions() Options {
	return Options{
		Backend:     history.BackendFile,
		CacheSize:   versions.DefaultCacheSize,
		Concurrency: 8,
	}
}

// Engine serves syncs of one package. All state changes go through its
// mutex, so there is a single writer per package.
type Engine struct {
	name        string
	dir         string
	tree        *tree.Dir
	versions    *versions.Store
	log         history.Store
	reconciler  *Reconciler
	concurrency int
	now         func() time.Time

	mu gosync.Mutex
}

// Open opens (creating if needed) the package stored in dir.
func Open(dir, name string, opts Options) (*Engine, error) {
	for _, sub := range []string{TreeDir, HistoryDir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create package directory: %w", err)
		}
	}

	vs, err := versions.New(filepath.Join(dir, HistoryDir), opts.CacheSize)
	if err != nil {
		return nil, err
	}
	log, err := history.Open(opts.Backend, dir)
	if err != nil {
		return nil, err
	}

	t := tree.New(filepath.Join(dir, TreeDir))
	return &Engine{
		name:        name,
		dir:         dir,
		tree:        t,
		versions:    vs,
		log:         log,
		reconciler:  NewReconciler(t, opts.Merger),
		concurrency: opts.Concurrency,
		now:         time.Now,
	}, nil
}

// Name returns the package name.
func (e *Engine) Name() string {
	return e.name
}

// Close releases the edit log store.
func (e *Engine) Close() error {
	return e.log.Close()
}

// Manifest returns the current manifest, deleted entries included.
func (e *Engine) Manifest(ctx context.Context) (history.Manifest, error) {
	entries, err := e.log.Load(ctx)
	if err != nil {
		return nil, err
	}
	return history.DeriveManifest(entries), nil
}

// Sync runs one sync transaction: reconcile the request's files, append the
// clean ones to the edit log, and report every remote change the client has
// not seen yet.
func (e *Engine) Sync(ctx context.Context, req *model.SyncRequest) (*model.SyncResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	clientEntries, err := history.Parse(req.History)
	if err != nil {
		return nil, fmt.Errorf("%w: client history: %v", model.ErrInvalidRequest, err)
	}
	clientManifest := history.DeriveManifest(clientEntries)

	logger := logging.WithContext(ctx).With(logging.Package(e.name))
	if logging.FromContext(ctx) == nil {
		logger = logger.With(logging.RequestID(uuid.NewString()))
	}
	ctx = logging.NewContext(ctx, logger)
	defer logging.Timer("sync")()
	logger.Debug("sync started", logging.Count(len(req.Files)))

	// content reads happen before the lock; versions are immutable
	before, err := e.Manifest(ctx)
	if err != nil {
		return nil, err
	}
	src, err := prefetch(ctx, e.versions, req.Files, before, e.concurrency)
	if err != nil {
		return nil, fmt.Errorf("failed to prefetch contents: %w", err)
	}
	logger.Debug("prefetched contents", logging.Count(src.Len()))

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.log.Load(ctx)
	if err != nil {
		return nil, err
	}
	manifest := history.DeriveManifest(entries)

	outcome, err := e.reconciler.Reconcile(ctx, req.Files, manifest, src)
	if err != nil {
		logger.Error("reconcile failed", logging.Err(err))
		return nil, err
	}

	for p, pe := range outcome.Pending {
		pe.Author = req.Author
		pe.Message = req.Message
		outcome.Pending[p] = pe
	}
	stamped := history.Stamp(manifest, outcome.Pending, e.now())
	if err := e.commit(ctx, outcome, stamped); err != nil {
		logger.Error("sync aborted", logging.Err(err))
		return nil, err
	}

	latest, err := e.log.Text(ctx)
	if err != nil {
		return nil, err
	}
	all := make([]history.Entry, 0, len(entries)+len(stamped))
	all = append(all, entries...)
	all = append(all, stamped...)

	resp, err := e.assemble(ctx, outcome.Files, history.DeriveManifest(all), clientManifest, latest)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble response: %w", err)
	}

	logger.Info("sync completed",
		logging.Count(len(stamped)),
		slog.Int("conflicts", outcome.Conflicts()),
		slog.Int("history_files", len(resp.DotHistory)),
	)
	return resp, nil
}

// commit stores the version files of stamped and appends it to the log. On
// failure the whole batch is rolled back.
func (e *Engine) commit(ctx context.Context, outcome *Outcome, stamped []history.Entry) error {
	err := outcome.StoreVersions(ctx, e.versions, stamped)
	if err == nil {
		err = e.log.Append(ctx, stamped)
	}
	if err == nil {
		return nil
	}
	if rbErr := outcome.Rollback(ctx); rbErr != nil {
		err = errors.Join(err, rbErr)
	}
	return fmt.Errorf("failed to commit batch: %w", err)
}

// Clone returns every live file, every stored version and the ledger.
func (e *Engine) Clone(ctx context.Context) (*model.CloneResponse, error) {
	defer logging.Timer("clone")()

	e.mu.Lock()
	defer e.mu.Unlock()

	entries, err := e.log.Load(ctx)
	if err != nil {
		return nil, err
	}
	live := history.DeriveManifest(entries).Live()

	resp := &model.CloneResponse{
		PackageName: e.name,
		Files:       make(map[string][]byte, len(live)),
		DotHistory:  []model.HistoryFile{},
	}
	for p, edit := range live {
		content, err := e.currentContent(ctx, p, edit.Version)
		if err != nil {
			return nil, err
		}
		resp.Files[p] = content
	}

	keys, err := e.versions.Keys(ctx)
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		content, err := e.versions.ReadKey(ctx, key)
		if err != nil {
			return nil, err
		}
		resp.DotHistory = append(resp.DotHistory, model.HistoryFile{Path: key, Content: content})
	}

	if resp.Latest, err = e.log.Text(ctx); err != nil {
		return nil, err
	}
	logging.Debug("clone assembled", logging.Package(e.name), logging.Count(len(resp.Files)))
	return resp, nil
}
