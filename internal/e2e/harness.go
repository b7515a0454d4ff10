// Package e2e provides testing infrastructure for end-to-end CLI tests.
// A harness runs an in-process remote and drives the CLI against it from
// any number of working copies.
package e2e

import (
	"bytes"
	"context"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/docsync/internal/api"
	"github.com/klauern/docsync/internal/cli"
	"github.com/klauern/docsync/internal/history"
	docsync "github.com/klauern/docsync/internal/sync"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the inferred exit code (0 for success, 1 for error).
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness provides a test harness for running E2E CLI tests.
// It manages environment isolation, the remote and output capture.
type Harness struct {
	t        *testing.T
	homeDir  string
	remote   string
	registry *docsync.Registry
}

// NewHarness starts a remote using the file ledger backend.
func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return NewHarnessWithBackend(t, history.BackendFile)
}

// NewHarnessWithBackend starts a remote whose packages store their edit log
// with backend. Packages are created on first use.
func NewHarnessWithBackend(t *testing.T, backend history.Backend) *Harness {
	t.Helper()

	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)
	t.Setenv("NO_COLOR", "1")

	opts := docsync.DefaultOptions()
	opts.Backend = backend
	registry := docsync.NewRegistry(filepath.Join(homeDir, "packages"), opts, true)
	srv := httptest.NewServer(api.NewServer(registry, api.ServerOptions{}).Handler())
	t.Cleanup(func() {
		srv.Close()
		if err := registry.Close(); err != nil {
			t.Errorf("failed to close registry: %v", err)
		}
	})

	t.Setenv("DOCSYNC_CLIENT_REMOTE", srv.URL)
	return &Harness{t: t, homeDir: homeDir, remote: srv.URL, registry: registry}
}

// HomeDir returns the isolated home directory for this test harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// Remote returns the base URL of the remote.
func (h *Harness) Remote() string {
	return h.remote
}

// Registry returns the packages served by the remote.
func (h *Harness) Registry() *docsync.Registry {
	return h.registry
}

// Clone clones pkg into a fresh working copy named name.
func (h *Harness) Clone(pkg, name string) *Client {
	h.t.Helper()
	dir := filepath.Join(h.homeDir, "clients", name)
	r := h.Run("clone", pkg, dir)
	if !r.Success() {
		h.t.Fatalf("clone %s into %s failed: %v\nstdout: %s", pkg, name, r.Err, r.Stdout)
	}
	return &Client{t: h.t, name: name, root: dir}
}

// RunIn runs a CLI command against the working copy of c.
func (h *Harness) RunIn(c *Client, args ...string) *Result {
	h.t.Helper()
	return h.Run(append([]string{"--root", c.Root()}, args...)...)
}

// Run executes a CLI command with the given arguments and captures the output.
// The command is run in an isolated environment with proper stdout capture.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()

	args = append([]string{"docsync", "--no-color"}, args...)

	// Capture stdout
	oldStdout := os.Stdout
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdout pipe: %v", err)
	}
	os.Stdout = stdoutW

	// Read stdout concurrently so large output cannot fill the pipe buffer
	// while the command runs.
	var stdoutBuf bytes.Buffer
	var copyErr error
	copyDone := make(chan struct{})
	go func() {
		defer close(copyDone)
		_, copyErr = io.Copy(&stdoutBuf, stdoutR)
	}()

	cmdErr := cli.Run(context.Background(), args)

	// Restore stdout and close writer to signal EOF to the reader goroutine
	if err := stdoutW.Close(); err != nil {
		h.t.Fatalf("failed to close stdout pipe writer: %v", err)
	}
	os.Stdout = oldStdout

	<-copyDone
	if copyErr != nil {
		h.t.Fatalf("failed to read captured stdout: %v", copyErr)
	}

	exitCode := 0
	if cmdErr != nil {
		exitCode = 1
	}

	return &Result{
		Stdout:   stdoutBuf.String(),
		Err:      cmdErr,
		ExitCode: exitCode,
	}
}
