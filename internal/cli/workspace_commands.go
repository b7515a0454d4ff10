package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/history"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/model"
	"github.com/klauern/docsync/internal/progress"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/util"
	"github.com/klauern/docsync/internal/workspace"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create an empty working copy for a package",
		UsageText: "docsync init [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "package",
				Aliases: []string{"p"},
				Usage:   "Package to track (defaults to client.package)",
			},
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Remote base URL (defaults to client.remote)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			pkg := firstNonEmpty(cmd.String("package"), cfg.Client.Package)
			if pkg == "" {
				return errors.New("init requires a package name (--package or client.package)")
			}
			root := util.ExpandPath(cfg.Client.Root)
			ws, err := workspace.Init(root, pkg, firstNonEmpty(cmd.String("remote"), cfg.Client.Remote))
			if err != nil {
				return err
			}
			fmt.Fprintf(output(cmd), "%s Initialized working copy of %s in %s\n",
				ui.Success(ui.SymbolSuccess), ui.Bold(ws.PackageName), ws.Root())
			return nil
		},
	}
}

func cloneCommand() *cli.Command {
	return &cli.Command{
		Name:      "clone",
		Usage:     "Create a working copy from the remote's latest state",
		UsageText: "docsync clone [options] <package> [directory]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "remote",
				Usage: "Remote base URL (defaults to client.remote)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			args := cmd.Args()
			if args.Len() < 1 || args.Len() > 2 {
				return errors.New("clone requires a package and an optional directory")
			}
			cfg := configFrom(ctx)
			if remote := cmd.String("remote"); remote != "" {
				cfg.Client.Remote = remote
			}
			pkg := args.Get(0)
			dir := pkg
			if args.Len() == 2 {
				dir = args.Get(1)
			}

			clone, err := newClient(cfg, nil).Clone(ctx, pkg)
			if err != nil {
				return fmt.Errorf("failed to clone %s: %w", pkg, err)
			}

			ws, unlock, err := workspace.Create(ctx, util.ExpandPath(dir), pkg, cfg.Client.Remote)
			if err != nil {
				return err
			}
			defer releaser(unlock)()

			u := newUpdater(cfg, ws)
			bar := progress.Start(os.Stderr, "Cloning "+pkg, len(clone.Files)+len(clone.DotHistory))
			u.Progress = bar
			result, err := u.ApplyClone(ctx, ws, clone)
			if err != nil {
				return err
			}
			if err := bar.Finish(); err != nil {
				logging.Debug("failed to finish progress bar", logging.Err(err))
			}

			fmt.Fprintf(output(cmd), "%s Cloned %s into %s (%d files)\n",
				ui.Success(ui.SymbolSuccess), ui.Bold(pkg), ws.Root(), len(result.Files))
			return nil
		},
	}
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show local changes against the last sync",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			changes, err := localChanges(ctx, cfg.Client.Ignore, ws)
			if err != nil {
				return err
			}

			w := output(cmd)
			fmt.Fprintf(w, "Package %s\n", ui.Bold(ws.PackageName))
			printChanges(w, changes)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Send local changes to the remote and apply its response",
		UsageText: "docsync sync [options] [path...]",
		Description: `Send every local change (or only the given paths) to the remote,
   then write the merged result back into the working copy.

   Files changed on both sides are merged line by line. When the
   edits overlap the file is reported as conflicted and left as is;
   fix it and sync again, or run 'docsync revert' or 'docsync resolve'.

   Examples:
     docsync sync
     docsync sync -m "fix typo" guide/intro.md
     docsync sync --dry-run`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Show what would be sent without contacting the remote",
			},
			&cli.StringFlag{
				Name:    "message",
				Aliases: []string{"m"},
				Usage:   "Message recorded with every edit of this sync",
			},
			&cli.BoolFlag{
				Name:  "skip-backup",
				Usage: "Skip backups of files the remote overwrites",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			ws, release, err := openWorkspace(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			changes, err := localChanges(ctx, cfg.Client.Ignore, ws)
			if err != nil {
				return err
			}
			changes = workspace.Filter(changes, cleanPaths(cmd.Args().Slice()))

			w := output(cmd)
			if cmd.Bool("dry-run") {
				fmt.Fprintln(w, "DRY RUN: would send")
				printChanges(w, changes)
				return nil
			}

			files, err := ws.Requests(ctx, changes)
			if err != nil {
				return err
			}
			ledger, err := ws.Ledger()
			if err != nil {
				return err
			}
			req := &model.SyncRequest{
				PackageName: ws.PackageName,
				Files:       files,
				History:     ledger,
				Author:      cfg.Client.Author,
				Message:     cmd.String("message"),
			}
			logging.Info("sending sync request", logging.Package(ws.PackageName), logging.Count(len(files)))

			resp, err := newClient(cfg, ws).Sync(ctx, req)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			if cmd.Bool("skip-backup") {
				cfg.Client.Backup.Enabled = false
			}
			u := newUpdater(cfg, ws)
			bar := progress.Start(os.Stderr, "Applying changes", len(resp.Files)+len(resp.DotHistory))
			u.Progress = bar
			result, err := u.Apply(ctx, ws, resp)
			if err != nil {
				return fmt.Errorf("failed to apply sync response: %w", err)
			}
			if err := bar.Finish(); err != nil {
				logging.Debug("failed to finish progress bar", logging.Err(err))
			}

			printResult(w, result)
			if u.Backups != nil && cfg.Client.Backup.CleanupOnSync {
				cleanupAfterSync(w, cfg.Client.Backup.MaxBackups, cfg.Client.Backup.BackupMaxAge(), u)
			}

			if result.HasConflicts() {
				return fmt.Errorf("%d file(s) conflicted; edit them and sync again, or use 'docsync revert' or 'docsync resolve'",
					len(result.Conflicts()))
			}
			return nil
		},
	}
}

func revertCommand() *cli.Command {
	return &cli.Command{
		Name:      "revert",
		Usage:     "Discard local edits and restore the last synchronized content",
		UsageText: "docsync revert <path...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cleanPaths(cmd.Args().Slice())
			if len(paths) == 0 {
				return errors.New("revert requires at least one path")
			}
			cfg := configFrom(ctx)
			ws, release, err := openWorkspace(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			u := newUpdater(cfg, ws)
			w := output(cmd)
			for _, p := range paths {
				fr, err := u.Revert(ctx, ws, p)
				if err != nil {
					return fmt.Errorf("failed to revert %s: %w", p, err)
				}
				fmt.Fprintf(w, "%s %s (%s)\n", ui.StatusSuccess("Reverted"), fr.Path, fr.Action)
				if fr.BackupID != "" {
					fmt.Fprintf(w, "  backup: %s\n", ui.Dim(fr.BackupID))
				}
			}
			return nil
		},
	}
}

func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Mark conflicted files as resolved, keeping their local content",
		UsageText: "docsync resolve <path...>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			paths := cleanPaths(cmd.Args().Slice())
			if len(paths) == 0 {
				return errors.New("resolve requires at least one path")
			}
			cfg := configFrom(ctx)
			ws, release, err := openWorkspace(ctx, cfg)
			if err != nil {
				return err
			}
			defer release()

			u := newUpdater(cfg, ws)
			for _, p := range paths {
				if err := u.Resolve(ctx, ws, p); err != nil {
					return fmt.Errorf("failed to resolve %s: %w", p, err)
				}
				fmt.Fprintf(output(cmd), "%s %s\n", ui.StatusSuccess("Resolved"), p)
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show the edit log known to the working copy",
		UsageText: "docsync history [path]",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			text, err := ws.Ledger()
			if err != nil {
				return err
			}
			entries, err := history.Parse(text)
			if err != nil {
				return err
			}

			var only string
			if cmd.Args().Len() > 0 {
				only = cleanPaths(cmd.Args().Slice()[:1])[0]
			}
			w := output(cmd)
			shown := 0
			for _, e := range entries {
				if only != "" && e.Path != only {
					continue
				}
				printEntry(w, e)
				shown++
			}
			if shown == 0 {
				fmt.Fprintln(w, ui.Dim("No history"))
			}
			return nil
		},
	}
}

func localChanges(ctx context.Context, patterns []string, ws *workspace.Workspace) ([]workspace.Change, error) {
	ig, err := workspace.NewIgnore(patterns)
	if err != nil {
		return nil, err
	}
	return ws.Status(ctx, ig)
}

func printChanges(w io.Writer, changes []workspace.Change) {
	if len(changes) == 0 {
		fmt.Fprintln(w, ui.Dim("No local changes"))
		return
	}
	for _, c := range changes {
		fmt.Fprintf(w, "  %-14s %s\n", ui.ChangeLabel(string(c.Kind)), c.Path)
	}
}

func printResult(w io.Writer, result *workspace.ApplyResult) {
	for _, f := range result.Files {
		switch f.Action {
		case workspace.ActionUnchanged:
			continue
		case workspace.ActionConflict:
			fmt.Fprintf(w, "  %s %s: %s\n", ui.StatusError(""), f.Path, ui.SyncStatusLabel(f.Status))
			if f.ConflictCopy != "" {
				fmt.Fprintf(w, "    remote copy: %s\n", ui.Dim(f.ConflictCopy))
			}
		default:
			fmt.Fprintf(w, "  %s %s %s\n", ui.StatusSuccess(""), f.Path, ui.Dim(string(f.Action)))
		}
	}
	fmt.Fprintf(w, "Sync complete: %s\n", result.Summary())
}

func printEntry(w io.Writer, e history.Entry) {
	line := fmt.Sprintf("v%-4d %-8s %s", e.Edit.Version, e.Edit.Operation, e.Path)
	if !e.Edit.Timestamp.IsZero() {
		line += "  " + ui.Dim(e.Edit.Timestamp.Local().Format("2006-01-02 15:04"))
	}
	if e.Edit.Author != "" {
		line += "  " + e.Edit.Author
	}
	if e.Edit.Message != "" {
		line += "  " + ui.Info(e.Edit.Message)
	}
	fmt.Fprintln(w, line)
}

// cleanPaths turns user paths into slash separated paths relative to the
// working copy root.
func cleanPaths(args []string) []string {
	out := make([]string, 0, len(args))
	for _, a := range args {
		p := path.Clean(filepath.ToSlash(a))
		out = append(out, strings.TrimPrefix(p, "./"))
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
