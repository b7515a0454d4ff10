package e2e

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertSuccess stops the test unless the command succeeded.
func AssertSuccess(t *testing.T, r *Result) {
	t.Helper()
	require.NoError(t, r.Err, "stdout:\n%s", r.Stdout)
}

// AssertError stops the test unless the command failed.
func AssertError(t *testing.T, r *Result) {
	t.Helper()
	require.Error(t, r.Err, "stdout:\n%s", r.Stdout)
}

// AssertErrorContains stops the test unless the command failed with an
// error mentioning substr.
func AssertErrorContains(t *testing.T, r *Result, substr string) {
	t.Helper()
	require.Error(t, r.Err, "stdout:\n%s", r.Stdout)
	assert.Contains(t, r.Err.Error(), substr)
}

// AssertExitCode checks the inferred exit code.
func AssertExitCode(t *testing.T, r *Result, want int) {
	t.Helper()
	assert.Equal(t, want, r.ExitCode, "error: %v", r.Err)
}

// AssertOutputContains checks stdout for substr.
func AssertOutputContains(t *testing.T, r *Result, substr string) {
	t.Helper()
	assert.Contains(t, r.Stdout, substr)
}

// AssertOutputNotContains checks that stdout never mentions substr.
func AssertOutputNotContains(t *testing.T, r *Result, substr string) {
	t.Helper()
	assert.NotContains(t, r.Stdout, substr)
}

// AssertOutputEquals compares the whole of stdout.
func AssertOutputEquals(t *testing.T, r *Result, want string) {
	t.Helper()
	assert.Equal(t, want, r.Stdout)
}

// AssertFileEquals compares the content of path with want.
func AssertFileEquals(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path) // #nosec G304 - test-controlled path
	require.NoError(t, err)
	assert.Equal(t, want, string(data), path)
}

// AssertFileNotExists checks that nothing exists at path.
func AssertFileNotExists(t *testing.T, path string) {
	t.Helper()
	assert.NoFileExists(t, path)
	assert.NoDirExists(t, path)
}
