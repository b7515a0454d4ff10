package sync

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"

	"github.com/klauern/docsync/internal/logging"
)

// ErrUnknownPackage is returned for packages that do not exist on the remote.
var ErrUnknownPackage = errors.New("unknown package")

// Registry owns one Engine per package under a packages root.
type Registry struct {
	root       string
	opts       Options
	autoCreate bool

	mu      gosync.Mutex
	engines map[string]*Engine
}

// NewRegistry returns a registry for the packages under root. With
// autoCreate, syncing an unknown package creates it.
func NewRegistry(root string, opts Options, autoCreate bool) *Registry {
	return &Registry{
		root:       root,
		opts:       opts,
		autoCreate: autoCreate,
		engines:    make(map[string]*Engine),
	}
}

// ValidatePackageName checks that name is usable as a directory name.
func ValidatePackageName(name string) error {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid package name %q", name)
	}
	return nil
}

// Get returns the engine of the named package.
func (r *Registry) Get(name string) (*Engine, error) {
	if err := ValidatePackageName(name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownPackage, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.engines[name]; ok {
		return e, nil
	}

	dir := filepath.Join(r.root, name)
	info, err := os.Stat(dir)
	switch {
	case err == nil && info.IsDir():
	case err == nil, errors.Is(err, os.ErrNotExist):
		if !r.autoCreate {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPackage, name)
		}
		logging.Info("creating package", logging.Package(name))
	default:
		return nil, fmt.Errorf("failed to stat package %s: %w", name, err)
	}
	return r.open(name)
}

// Create creates the named package if it does not exist and returns its
// engine.
func (r *Registry) Create(name string) (*Engine, error) {
	if err := ValidatePackageName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.engines[name]; ok {
		return e, nil
	}
	return r.open(name)
}

func (r *Registry) open(name string) (*Engine, error) {
	e, err := Open(filepath.Join(r.root, name), name, r.opts)
	if err != nil {
		return nil, err
	}
	r.engines[name] = e
	return e, nil
}

// Names lists the packages present under the root.
func (r *Registry) Names() ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && ValidatePackageName(e.Name()) == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close closes every open engine.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for name, e := range r.engines {
		if err := e.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
		delete(r.engines, name)
	}
	return errors.Join(errs...)
}
