package e2e

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// Client is one cloned working copy driven by a test.
type Client struct {
	t    *testing.T
	name string
	root string
}

// Name is the directory name the client was cloned into.
func (c *Client) Name() string { return c.name }

// Root is the working copy root.
func (c *Client) Root() string { return c.root }

// Path returns the absolute path of a slash separated working copy path.
func (c *Client) Path(rel string) string {
	return filepath.Join(c.root, filepath.FromSlash(rel))
}

// Edit writes content to rel, creating parent directories.
func (c *Client) Edit(rel, content string) {
	c.t.Helper()
	full := c.Path(rel)
	require.NoError(c.t, os.MkdirAll(filepath.Dir(full), 0o750), "%s: mkdir for %s", c.name, rel)
	require.NoError(c.t, os.WriteFile(full, []byte(content), 0o600), "%s: write %s", c.name, rel)
}

// Delete removes rel from the working copy.
func (c *Client) Delete(rel string) {
	c.t.Helper()
	require.NoError(c.t, os.Remove(c.Path(rel)), "%s: remove %s", c.name, rel)
}

// Has reports whether rel exists in the working copy.
func (c *Client) Has(rel string) bool {
	_, err := os.Stat(c.Path(rel))
	return err == nil
}

// Content returns the current content of rel.
func (c *Client) Content(rel string) string {
	c.t.Helper()
	data, err := os.ReadFile(c.Path(rel)) // #nosec G304 - test-controlled path
	require.NoError(c.t, err, "%s: read %s", c.name, rel)
	return string(data)
}
