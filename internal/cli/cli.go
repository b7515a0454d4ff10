// Package cli provides the command-line interface for docsync.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/api"
	"github.com/klauern/docsync/internal/backup"
	"github.com/klauern/docsync/internal/config"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/workspace"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	return newApp().Run(ctx, args)
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "docsync",
		Usage:   "Synchronize a working copy of a content package with a remote",
		Version: Version,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.StringFlag{
				Name:    "config",
				Usage:   "Path to a YAML or TOML config file",
				Sources: cli.EnvVars("DOCSYNC_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"C"},
				Usage:   "Working copy directory (overrides client.root)",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return ctx, err
			}
			configureColors(cmd, cfg)
			if err := configureLogging(cmd, cfg); err != nil {
				return ctx, err
			}
			return withConfig(ctx, cfg), nil
		},
		Commands: []*cli.Command{
			versionCommand(),
			configCommand(),
			serveCommand(),
			packagesCommand(),
			initCommand(),
			cloneCommand(),
			statusCommand(),
			syncCommand(),
			revertCommand(),
			resolveCommand(),
			historyCommand(),
			exportCommand(),
			backupCommand(),
		},
	}
}

// loadConfig reads --config when given, otherwise the default config file.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFromPath(util.ExpandPath(path))
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if root := cmd.String("root"); root != "" {
		cfg.Client.Root = root
	}
	return cfg, nil
}

// configureColors sets up color output based on CLI flags and config.
func configureColors(cmd *cli.Command, cfg *config.Config) {
	if cmd.Bool("no-color") {
		ui.DisableColors()
		return
	}
	ui.ConfigureColor(cfg.Output.Color)
}

// configureLogging sets up the logging level based on CLI flags.
func configureLogging(cmd *cli.Command, cfg *config.Config) error {
	opts := logging.DefaultOptions()

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") || cfg.Output.Verbose {
		opts.Level = slog.LevelInfo
	}

	logger := logging.New(opts)
	logging.SetDefault(logger)

	logging.Debug("logging configured", slog.String("level", opts.Level.String()))

	return nil
}

type configKey struct{}

func withConfig(ctx context.Context, cfg *config.Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// configFrom returns the config loaded by the root command.
func configFrom(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return cfg
	}
	return config.Default()
}

// output is where commands print results.
func output(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// loadWorkspace opens the working copy at the configured root.
func loadWorkspace(cfg *config.Config) (*workspace.Workspace, error) {
	ws, err := workspace.Load(util.ExpandPath(cfg.Client.Root))
	if err != nil {
		return nil, err
	}
	logging.Debug("working copy loaded", logging.Package(ws.PackageName), logging.Path(ws.Root()))
	return ws, nil
}

// newClient talks to the remote recorded in ws, falling back to the config.
func newClient(cfg *config.Config, ws *workspace.Workspace) *api.Client {
	remote := cfg.Client.Remote
	if ws != nil && ws.Remote != "" {
		remote = ws.Remote
	}
	return api.NewClient(remote, &http.Client{Timeout: cfg.Client.Timeout})
}

// newUpdater builds an updater honoring the backup and conflict settings.
func newUpdater(cfg *config.Config, ws *workspace.Workspace) *workspace.Updater {
	var backups *backup.Manager
	if cfg.Client.Backup.Enabled {
		backups = backup.New(util.BackupsPath(ws.Root()))
	}
	u := workspace.NewUpdater(backups)
	u.SaveConflicts = cfg.Client.SaveConflicts
	return u
}

// openWorkspace locks the working copy at the configured root before
// loading it and returns the lock's release func.
func openWorkspace(ctx context.Context, cfg *config.Config) (*workspace.Workspace, func(), error) {
	ws, unlock, err := workspace.Open(ctx, util.ExpandPath(cfg.Client.Root))
	if err != nil {
		return nil, nil, err
	}
	logging.Debug("working copy locked", logging.Package(ws.PackageName), logging.Path(ws.Root()))
	return ws, releaser(unlock), nil
}

func releaser(unlock func() error) func() {
	return func() {
		if err := unlock(); err != nil {
			logging.Warn("failed to release working copy lock", logging.Err(err))
		}
	}
}
