package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/api"
	"github.com/klauern/docsync/internal/config"
	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/merge"
	docsync "github.com/klauern/docsync/internal/sync"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/util"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the remote that reconciles syncs for every package",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (defaults to server.listen)",
			},
			&cli.StringFlag{
				Name:  "packages-root",
				Usage: "Directory holding one subdirectory per package",
			},
			&cli.StringFlag{
				Name:  "backend",
				Usage: "Edit log storage: file or sqlite",
			},
			&cli.BoolFlag{
				Name:  "auto-create",
				Usage: "Create unknown packages on first sync",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Write logs as JSON",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			applyServeFlags(cmd, &cfg.Server)
			if err := cfg.Validate(); err != nil {
				return err
			}

			if cmd.Bool("log-json") {
				opts := logging.DefaultOptions()
				opts.Level = logging.LevelInfo
				if cmd.Bool("debug") {
					opts.Level = logging.LevelDebug
				}
				opts.JSON = true
				logging.SetDefault(logging.New(opts))
			}

			registry := newRegistry(cfg.Server)
			defer func() {
				if err := registry.Close(); err != nil {
					logging.Warn("failed to close packages", logging.Err(err))
				}
			}()

			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(output(cmd), "Serving %s on %s\n", util.ExpandPath(cfg.Server.PackagesRoot), cfg.Server.Listen)
			server := api.NewServer(registry, api.ServerOptions{
				Addr:         cfg.Server.Listen,
				MaxBodyBytes: cfg.Server.MaxBodyBytes,
			})
			return server.Start(ctx)
		},
	}
}

func packagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "packages",
		Usage: "List or create packages",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the packages the remote serves",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					names, err := newClient(configFrom(ctx), nil).Packages(ctx)
					if err != nil {
						return err
					}
					w := output(cmd)
					if len(names) == 0 {
						fmt.Fprintln(w, ui.Dim("No packages"))
						return nil
					}
					for _, name := range names {
						fmt.Fprintln(w, name)
					}
					return nil
				},
			},
			{
				Name:      "create",
				Usage:     "Create an empty package under the server's packages root",
				UsageText: "docsync packages create [--packages-root dir] <name>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "packages-root",
						Usage: "Directory holding one subdirectory per package",
					},
					&cli.StringFlag{
						Name:  "backend",
						Usage: "Edit log storage: file or sqlite",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.Args().Len() != 1 {
						return errors.New("create requires exactly one package name")
					}
					cfg := configFrom(ctx)
					applyServeFlags(cmd, &cfg.Server)
					if err := cfg.Validate(); err != nil {
						return err
					}

					registry := newRegistry(cfg.Server)
					defer func() {
						if err := registry.Close(); err != nil {
							logging.Warn("failed to close packages", logging.Err(err))
						}
					}()
					name := cmd.Args().First()
					if _, err := registry.Create(name); err != nil {
						return err
					}
					fmt.Fprintf(output(cmd), "%s Created package %s\n", ui.Success(ui.SymbolSuccess), ui.Bold(name))
					return nil
				},
			},
		},
	}
}

// applyServeFlags overrides server settings with flags the command set.
func applyServeFlags(cmd *cli.Command, s *config.ServerConfig) {
	if v := cmd.String("listen"); v != "" {
		s.Listen = v
	}
	if v := cmd.String("packages-root"); v != "" {
		s.PackagesRoot = v
	}
	if v := cmd.String("backend"); v != "" {
		s.LogBackend = v
	}
	if cmd.Bool("auto-create") {
		s.AutoCreate = true
	}
}

func newRegistry(s config.ServerConfig) *docsync.Registry {
	opts := docsync.DefaultOptions()
	opts.Backend = history.Backend(s.LogBackend)
	if s.CacheSize > 0 {
		opts.CacheSize = s.CacheSize
	}
	if s.Concurrency > 0 {
		opts.Concurrency = s.Concurrency
	}
	opts.Merger = merge.NewMergerWithLabels(s.Merge.OursLabel, s.Merge.TheirsLabel)
	return docsync.NewRegistry(util.ExpandPath(s.PackagesRoot), opts, s.AutoCreate)
}
