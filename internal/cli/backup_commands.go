package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/backup"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/workspace"
)

func backupCommand() *cli.Command {
	return &cli.Command{
		Name:  "backup",
		Usage: "Manage backups taken before the remote overwrote local files",
		Commands: []*cli.Command{
			backupListCommand(),
			backupRestoreCommand(),
			backupVerifyCommand(),
			backupCleanupCommand(),
			backupStatsCommand(),
		},
	}
}

func backupManager(ctx context.Context) (*workspace.Workspace, *backup.Manager, error) {
	ws, err := loadWorkspace(configFrom(ctx))
	if err != nil {
		return nil, nil, err
	}
	return ws, backup.New(util.BackupsPath(ws.Root())), nil
}

func backupListCommand() *cli.Command {
	return &cli.Command{
		Name:      "list",
		Usage:     "List backups, newest first",
		UsageText: "docsync backup list [path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, m, err := backupManager(ctx)
			if err != nil {
				return err
			}
			var only string
			if cmd.Args().Len() > 0 {
				only = cleanPaths(cmd.Args().Slice()[:1])[0]
			}
			backups, err := m.List(only)
			if err != nil {
				return err
			}

			w := output(cmd)
			if len(backups) == 0 {
				fmt.Fprintln(w, ui.Dim("No backups"))
				return nil
			}
			fmt.Fprintf(w, "%s\n", ui.Header(fmt.Sprintf("%-32s %-19s %-10s %s", "ID", "CREATED", "SIZE", "PATH")))
			for _, b := range backups {
				fmt.Fprintf(w, "%-32s %-19s %-10s %s %s\n",
					b.ID, b.CreatedAt.Local().Format("2006-01-02 15:04:05"), formatSize(b.Size), b.SourcePath, ui.Dim(b.Reason))
			}
			return nil
		},
	}
}

func backupRestoreCommand() *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Write a backup back into the working copy",
		UsageText: "docsync backup restore [--to file] <id>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "to",
				Usage: "Write to this file instead of the original path",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() != 1 {
				return errors.New("restore requires exactly one backup id")
			}
			ws, m, err := backupManager(ctx)
			if err != nil {
				return err
			}
			id := cmd.Args().First()
			meta, _, err := m.Read(id)
			if err != nil {
				return err
			}

			target := cmd.String("to")
			if target == "" {
				target = filepath.Join(ws.Root(), filepath.FromSlash(meta.SourcePath))
			}
			if err := m.Restore(id, target); err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "%s %s -> %s\n", ui.StatusSuccess("Restored"), id, target)
			return nil
		},
	}
}

func backupVerifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "verify",
		Usage:     "Check backups against their recorded hashes",
		UsageText: "docsync backup verify [id...]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, m, err := backupManager(ctx)
			if err != nil {
				return err
			}
			ids := cmd.Args().Slice()
			if len(ids) == 0 {
				backups, err := m.List("")
				if err != nil {
					return err
				}
				for _, b := range backups {
					ids = append(ids, b.ID)
				}
			}

			w := output(cmd)
			failed := 0
			for _, id := range ids {
				if err := m.Verify(id); err != nil {
					failed++
					fmt.Fprintf(w, "%s %s: %v\n", ui.StatusError(""), id, err)
					continue
				}
				fmt.Fprintf(w, "%s %s\n", ui.StatusSuccess(""), id)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d backups failed verification", failed, len(ids))
			}
			return nil
		},
	}
}

func backupCleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Remove old backups according to the retention policy",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "max-backups",
				Usage: "Backups to keep per file (defaults to client.backup.max_backups)",
			},
			&cli.DurationFlag{
				Name:  "max-age",
				Usage: "Remove backups older than this (defaults to client.backup.retention_days)",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Show what would be removed",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			_, m, err := backupManager(ctx)
			if err != nil {
				return err
			}

			opts := backup.DefaultCleanupOptions()
			opts.MaxBackups = cfg.Client.Backup.MaxBackups
			opts.MaxAge = cfg.Client.Backup.BackupMaxAge()
			if cmd.IsSet("max-backups") {
				opts.MaxBackups = cmd.Int("max-backups")
			}
			if cmd.IsSet("max-age") {
				opts.MaxAge = cmd.Duration("max-age")
			}
			opts.DryRun = cmd.Bool("dry-run")

			removed, err := m.Cleanup(opts)
			if err != nil {
				return err
			}
			w := output(cmd)
			verb := "Removed"
			if opts.DryRun {
				verb = "Would remove"
			}
			for _, id := range removed {
				fmt.Fprintf(w, "  %s %s\n", ui.StatusSkipped(""), id)
			}
			fmt.Fprintf(w, "%s %d backup(s)\n", verb, len(removed))
			return nil
		},
	}
}

func backupStatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Summarize stored backups",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			_, m, err := backupManager(ctx)
			if err != nil {
				return err
			}
			stats, err := m.GetStats()
			if err != nil {
				return err
			}
			w := output(cmd)
			fmt.Fprintf(w, "Backups: %d of %d files, %s\n", stats.TotalBackups, stats.Files, formatSize(stats.TotalSize))
			if stats.TotalBackups > 0 {
				fmt.Fprintf(w, "  oldest: %s\n", stats.OldestBackup.Local().Format(time.RFC3339))
				fmt.Fprintf(w, "  newest: %s\n", stats.NewestBackup.Local().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// cleanupAfterSync applies the retention policy once a sync has finished.
// Failures only warn since the sync itself succeeded.
func cleanupAfterSync(w io.Writer, maxBackups int, maxAge time.Duration, u *workspace.Updater) {
	opts := backup.DefaultCleanupOptions()
	opts.MaxBackups = maxBackups
	opts.MaxAge = maxAge
	removed, err := u.Backups.Cleanup(opts)
	if err != nil {
		logging.Warn("backup cleanup failed", logging.Err(err))
		fmt.Fprintf(w, "%s backup cleanup failed: %v\n", ui.StatusWarning("Warning:"), err)
		return
	}
	if len(removed) > 0 {
		fmt.Fprintf(w, "Cleaned up %d old backup(s)\n", len(removed))
	}
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
