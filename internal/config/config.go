// Package config provides configuration management for docsync.
// It supports YAML or TOML configuration files, environment variables, and
// sensible defaults.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/versions"
)

// Config represents the complete docsync configuration.
type Config struct {
	// Client configures the working copy side
	Client ClientConfig `yaml:"client" toml:"client"`

	// Server configures the remote side
	Server ServerConfig `yaml:"server" toml:"server"`

	// Output configures display preferences
	Output OutputConfig `yaml:"output" toml:"output"`
}

// ClientConfig holds working copy settings.
type ClientConfig struct {
	// Remote is the base URL of the docsync server
	Remote string `yaml:"remote" toml:"remote"`
	// Package is the package a new working copy tracks
	Package string `yaml:"package,omitempty" toml:"package,omitempty"`
	// Root is the working copy directory
	Root string `yaml:"root" toml:"root"`
	// Ignore lists glob patterns excluded from sync
	Ignore []string `yaml:"ignore,omitempty" toml:"ignore,omitempty"`
	// Author is recorded with every edit sent to the remote
	Author string `yaml:"author,omitempty" toml:"author,omitempty"`
	// Timeout bounds a single call to the remote
	Timeout time.Duration `yaml:"timeout" toml:"timeout"`
	// Backup configures local backups before files are replaced
	Backup BackupConfig `yaml:"backup" toml:"backup"`
	// SaveConflicts keeps the remote side of conflicted files
	SaveConflicts bool `yaml:"save_conflicts" toml:"save_conflicts"`
}

// BackupConfig holds backup settings.
type BackupConfig struct {
	// Enabled enables automatic backups
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// MaxBackups is the maximum number of backups to keep per file
	MaxBackups int `yaml:"max_backups" toml:"max_backups"`
	// RetentionDays is how long to keep backups
	RetentionDays int `yaml:"retention_days" toml:"retention_days"`
	// CleanupOnSync enables cleanup during sync
	CleanupOnSync bool `yaml:"cleanup_on_sync" toml:"cleanup_on_sync"`
}

// ServerConfig holds remote settings.
type ServerConfig struct {
	// Listen is the address the server binds to
	Listen string `yaml:"listen" toml:"listen"`
	// PackagesRoot holds one directory per package
	PackagesRoot string `yaml:"packages_root" toml:"packages_root"`
	// LogBackend selects how the edit log is stored (file, sqlite)
	LogBackend string `yaml:"log_backend" toml:"log_backend"`
	// CacheSize is the number of version files kept in memory per package
	CacheSize int `yaml:"cache_size" toml:"cache_size"`
	// Concurrency bounds parallel version reads during a sync
	Concurrency int `yaml:"concurrency" toml:"concurrency"`
	// AutoCreate creates unknown packages on first sync
	AutoCreate bool `yaml:"auto_create" toml:"auto_create"`
	// MaxBodyBytes bounds the size of a sync request
	MaxBodyBytes int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`
	// Merge configures conflict marker labels
	Merge MergeConfig `yaml:"merge" toml:"merge"`
}

// MergeConfig holds conflict marker labels.
type MergeConfig struct {
	OursLabel   string `yaml:"ours_label" toml:"ours_label"`
	TheirsLabel string `yaml:"theirs_label" toml:"theirs_label"`
}

// OutputConfig holds display preferences.
type OutputConfig struct {
	// Color controls color output (auto, always, never)
	Color string `yaml:"color" toml:"color"`
	// Verbose enables verbose output
	Verbose bool `yaml:"verbose" toml:"verbose"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Client: ClientConfig{
			Remote:  "http://127.0.0.1:8000",
			Root:    ".",
			Timeout: 2 * time.Minute,
			Backup: BackupConfig{
				Enabled:       true,
				MaxBackups:    10,
				RetentionDays: 30,
				CleanupOnSync: true,
			},
			SaveConflicts: true,
		},
		Server: ServerConfig{
			Listen:       "127.0.0.1:8000",
			PackagesRoot: filepath.Join(util.DocsyncDataDir(), "packages"),
			LogBackend:   string(history.BackendFile),
			CacheSize:    versions.DefaultCacheSize,
			Concurrency:  8,
			MaxBodyBytes: 64 << 20,
			Merge: MergeConfig{
				OursLabel:   "ours",
				TheirsLabel: "theirs",
			},
		},
		Output: OutputConfig{
			Color:   "auto",
			Verbose: false,
		},
	}
}

// FilePath returns the path to the default config file.
func FilePath() string {
	return util.DocsyncConfigPath()
}

// Load loads the configuration from the default file, merging with defaults.
// If the config file doesn't exist, returns default configuration.
func Load() (*Config, error) {
	cfg, err := LoadFromPath(FilePath())
	if err != nil && os.IsNotExist(err) {
		cfg = Default()
		cfg.applyEnvironment()
		return cfg, nil
	}
	return cfg, err
}

// LoadFromPath loads configuration from a specific path. Files ending in
// .toml are read as TOML, anything else as YAML.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	// #nosec G304 - path is provided by caller
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	cfg.applyEnvironment()
	return cfg, cfg.Validate()
}

// Save writes the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveToPath(FilePath())
}

// SaveToPath writes the configuration to a specific path, as TOML when the
// path ends in .toml.
func (c *Config) SaveToPath(path string) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(c); err != nil {
			return err
		}
	}
	// #nosec G306 - config file should be readable by user
	return util.WriteFileAtomic(path, data, 0o644)
}

// Validate checks values that cannot be corrected silently.
func (c *Config) Validate() error {
	if !history.Backend(c.Server.LogBackend).IsValid() {
		return fmt.Errorf("unknown log backend %q", c.Server.LogBackend)
	}
	switch c.Output.Color {
	case "auto", "always", "never":
	default:
		return fmt.Errorf("unknown color mode %q", c.Output.Color)
	}
	return nil
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// applyEnvironment applies environment variable overrides.
// Environment variables follow the pattern DOCSYNC_<SECTION>_<KEY>.
func (c *Config) applyEnvironment() {
	// Client settings
	if v := os.Getenv("DOCSYNC_CLIENT_REMOTE"); v != "" {
		c.Client.Remote = v
	}
	if v := os.Getenv("DOCSYNC_CLIENT_PACKAGE"); v != "" {
		c.Client.Package = v
	}
	if v := os.Getenv("DOCSYNC_CLIENT_ROOT"); v != "" {
		c.Client.Root = v
	}
	if v := os.Getenv("DOCSYNC_CLIENT_IGNORE"); v != "" {
		c.Client.Ignore = splitList(v)
	}
	if v := os.Getenv("DOCSYNC_CLIENT_AUTHOR"); v != "" {
		c.Client.Author = v
	}
	if v := os.Getenv("DOCSYNC_CLIENT_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.Client.Timeout = d
		}
	}
	if v := os.Getenv("DOCSYNC_CLIENT_BACKUP"); v != "" {
		c.Client.Backup.Enabled = parseBool(v)
	}

	// Server settings
	if v := os.Getenv("DOCSYNC_SERVER_LISTEN"); v != "" {
		c.Server.Listen = v
	}
	if v := os.Getenv("DOCSYNC_SERVER_PACKAGES_ROOT"); v != "" {
		c.Server.PackagesRoot = v
	}
	if v := os.Getenv("DOCSYNC_SERVER_LOG_BACKEND"); v != "" {
		c.Server.LogBackend = v
	}
	if v := os.Getenv("DOCSYNC_SERVER_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			c.Server.CacheSize = n
		}
	}
	if v := os.Getenv("DOCSYNC_SERVER_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Server.Concurrency = n
		}
	}
	if v := os.Getenv("DOCSYNC_SERVER_AUTO_CREATE"); v != "" {
		c.Server.AutoCreate = parseBool(v)
	}

	// Output settings
	if v := os.Getenv("DOCSYNC_OUTPUT_COLOR"); v != "" {
		c.Output.Color = v
	}
	if v := os.Getenv("DOCSYNC_OUTPUT_VERBOSE"); v != "" {
		c.Output.Verbose = parseBool(v)
	}
}

// parseBool parses a boolean from common string representations.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// splitList splits a comma-separated list. Empty segments are filtered out.
func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// BackupMaxAge returns the retention window as a duration.
func (b BackupConfig) BackupMaxAge() time.Duration {
	return time.Duration(b.RetentionDays) * 24 * time.Hour
}

// Exists returns true if a config file exists.
func Exists() bool {
	_, err := os.Stat(FilePath())
	return err == nil
}
