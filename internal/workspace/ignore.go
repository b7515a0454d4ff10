package workspace

import (
	"fmt"
	"path"
	"strings"

	"github.com/gobwas/glob"

	"github.com/klauern/docsync/internal/util"
)

// Ignore matches working-copy paths that never take part in a sync.
// Patterns without a slash match the base name at any depth; patterns with a
// slash match the whole path.
type Ignore struct {
	patterns []string
	full     []glob.Glob
	base     []glob.Glob
}

// NewIgnore compiles patterns.
func NewIgnore(patterns []string) (*Ignore, error) {
	ig := &Ignore{}
	for _, raw := range patterns {
		pattern := strings.TrimSuffix(strings.TrimSpace(raw), "/")
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("invalid ignore pattern %q: %w", raw, err)
		}
		ig.patterns = append(ig.patterns, pattern)
		if strings.Contains(pattern, "/") {
			ig.full = append(ig.full, g)
		} else {
			ig.base = append(ig.base, g)
		}
	}
	return ig, nil
}

// Patterns returns the compiled patterns.
func (ig *Ignore) Patterns() []string {
	if ig == nil {
		return nil
	}
	return ig.patterns
}

// Match reports whether p is ignored. The metadata directory always is.
func (ig *Ignore) Match(p string) bool {
	if p == util.WorkspaceDirName || strings.HasPrefix(p, util.WorkspaceDirName+"/") {
		return true
	}
	if ig == nil {
		return false
	}
	for _, g := range ig.full {
		if g.Match(p) {
			return true
		}
	}
	name := path.Base(p)
	for _, g := range ig.base {
		if g.Match(name) {
			return true
		}
	}
	return false
}

func (ig *Ignore) skip(p string, _ bool) bool {
	return ig.Match(p)
}
