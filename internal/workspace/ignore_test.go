package workspace

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIgnoreMatch(t *testing.T) {
	ig, err := NewIgnore([]string{"*.tmp", "build/", "drafts/**", " ", "docs/*.bak"})
	require.NoError(t, err)
	assert.Equal(t, []string{"*.tmp", "build", "drafts/**", "docs/*.bak"}, ig.Patterns())

	tests := map[string]bool{
		".docsync":             true,
		".docsync/history/a.1": true,
		"a.tmp":                true,
		"deep/nested/b.tmp":    true,
		"build":                true,
		"src/build":            true,
		"drafts/x/y.md":        true,
		"docs/a.bak":           true,
		"docs/sub/a.bak":       false,
		"a.md":                 false,
		"builder/a.md":         false,
	}
	for p, want := range tests {
		t.Run(p, func(t *testing.T) {
			assert.Equal(t, want, ig.Match(p))
		})
	}
}

func TestIgnoreNil(t *testing.T) {
	var ig *Ignore
	assert.False(t, ig.Match("a.md"))
	assert.True(t, ig.Match(".docsync/workspace.json"))
	assert.Nil(t, ig.Patterns())
}

func TestIgnoreInvalidPattern(t *testing.T) {
	_, err := NewIgnore([]string{"[unclosed"})
	assert.Error(t, err)
}
