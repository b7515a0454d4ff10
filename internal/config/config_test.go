package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/docsync/internal/history"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NotNil(t, cfg)

	assert.Equal(t, "http://127.0.0.1:8000", cfg.Client.Remote)
	assert.Equal(t, ".", cfg.Client.Root)
	assert.Equal(t, 2*time.Minute, cfg.Client.Timeout)
	assert.True(t, cfg.Client.Backup.Enabled)
	assert.Equal(t, 10, cfg.Client.Backup.MaxBackups)
	assert.Equal(t, 30*24*time.Hour, cfg.Client.Backup.BackupMaxAge())
	assert.True(t, cfg.Client.SaveConflicts)

	assert.Equal(t, string(history.BackendFile), cfg.Server.LogBackend)
	assert.Equal(t, 8, cfg.Server.Concurrency)
	assert.Equal(t, "ours", cfg.Server.Merge.OursLabel)
	assert.False(t, cfg.Server.AutoCreate)

	assert.Equal(t, "auto", cfg.Output.Color)
	require.NoError(t, cfg.Validate())
}

func TestLoadSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"config.yaml", "config.toml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)

			cfg := Default()
			cfg.Client.Remote = "https://docs.example.com"
			cfg.Client.Ignore = []string{"*.tmp", "drafts/**"}
			cfg.Client.Timeout = 30 * time.Second
			cfg.Server.LogBackend = string(history.BackendSQLite)
			cfg.Server.AutoCreate = true
			cfg.Output.Verbose = true
			require.NoError(t, cfg.SaveToPath(path))

			loaded, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, cfg, loaded)
		})
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	tests := map[string]string{
		"partial.yaml": "client:\n  remote: http://remote:9000\nserver:\n  concurrency: 2\n",
		"partial.toml": "[client]\nremote = \"http://remote:9000\"\n\n[server]\nconcurrency = 2\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			cfg, err := LoadFromPath(path)
			require.NoError(t, err)
			assert.Equal(t, "http://remote:9000", cfg.Client.Remote)
			assert.Equal(t, 2, cfg.Server.Concurrency)
			assert.Equal(t, Default().Server.CacheSize, cfg.Server.CacheSize)
			assert.True(t, cfg.Client.Backup.Enabled)
		})
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromPath(filepath.Join(dir, "missing.yaml"))
	assert.True(t, os.IsNotExist(err))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("client: [unclosed"), 0o600))
	_, err = LoadFromPath(bad)
	assert.Error(t, err)

	badTOML := filepath.Join(dir, "bad.toml")
	require.NoError(t, os.WriteFile(badTOML, []byte("[client\n"), 0o600))
	_, err = LoadFromPath(badTOML)
	assert.Error(t, err)

	backend := filepath.Join(dir, "backend.yaml")
	require.NoError(t, os.WriteFile(backend, []byte("server:\n  log_backend: postgres\n"), 0o600))
	_, err = LoadFromPath(backend)
	assert.ErrorContains(t, err, "unknown log backend")
}

func TestLoadMissingDefaultFile(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Client.Remote, cfg.Client.Remote)
	assert.False(t, Exists())
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DOCSYNC_CLIENT_REMOTE", "http://env:1")
	t.Setenv("DOCSYNC_CLIENT_IGNORE", "*.tmp, ,build")
	t.Setenv("DOCSYNC_CLIENT_TIMEOUT", "5s")
	t.Setenv("DOCSYNC_CLIENT_BACKUP", "no")
	t.Setenv("DOCSYNC_SERVER_LOG_BACKEND", "sqlite")
	t.Setenv("DOCSYNC_SERVER_CACHE_SIZE", "12")
	t.Setenv("DOCSYNC_SERVER_CONCURRENCY", "0")
	t.Setenv("DOCSYNC_SERVER_AUTO_CREATE", "yes")
	t.Setenv("DOCSYNC_OUTPUT_VERBOSE", "1")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://env:1", cfg.Client.Remote)
	assert.Equal(t, []string{"*.tmp", "build"}, cfg.Client.Ignore)
	assert.Equal(t, 5*time.Second, cfg.Client.Timeout)
	assert.False(t, cfg.Client.Backup.Enabled)
	assert.Equal(t, "sqlite", cfg.Server.LogBackend)
	assert.Equal(t, 12, cfg.Server.CacheSize)
	assert.Equal(t, 8, cfg.Server.Concurrency, "non-positive concurrency is ignored")
	assert.True(t, cfg.Server.AutoCreate)
	assert.True(t, cfg.Output.Verbose)
}

func TestParseBool(t *testing.T) {
	tests := map[string]bool{
		"true": true, "TRUE": true, "1": true, "yes": true, "on": true,
		"false": false, "0": false, "no": false, "": false, "maybe": false,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseBool(in), in)
	}
}
