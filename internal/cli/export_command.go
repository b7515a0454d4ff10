package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/klauern/docsync/internal/archive"
	"github.com/klauern/docsync/internal/logging"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/workspace"
)

func exportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Usage:     "Write the last synchronized state as a tar.gz archive",
		UsageText: "docsync export [options]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Archive path, - for stdout (defaults to <package>-<date>.tar.gz)",
			},
			&cli.DurationFlag{
				Name:  "since",
				Usage: "Only include files edited within this duration",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := configFrom(ctx)
			ws, err := loadWorkspace(cfg)
			if err != nil {
				return err
			}
			files, err := syncedFiles(ctx, ws)
			if err != nil {
				return err
			}
			ledger, err := ws.Ledger()
			if err != nil {
				return err
			}

			opts := archive.CreateOptions{Package: ws.PackageName, Ledger: ledger}
			if d := cmd.Duration("since"); d > 0 {
				opts.Since = time.Now().Add(-d)
			}

			target := cmd.String("output")
			if target == "" {
				target = fmt.Sprintf("%s-%s.tar.gz", ws.PackageName, time.Now().Format("20060102-150405"))
			}
			var w io.Writer = output(cmd)
			if target != "-" {
				// #nosec G304 - path is provided by the user
				f, err := os.Create(target)
				if err != nil {
					return fmt.Errorf("failed to create archive: %w", err)
				}
				defer func() {
					if err := f.Close(); err != nil {
						logging.Warn("failed to close archive", logging.Err(err))
					}
				}()
				w = f
			}

			if err := archive.Create(files, w, opts); err != nil {
				return err
			}
			if target != "-" {
				fmt.Fprintf(output(cmd), "%s Exported %s to %s\n", ui.Success(ui.SymbolSuccess), ui.Bold(ws.PackageName), target)
			}
			return nil
		},
	}
}

// syncedFiles reads every live file at its synchronized version from the
// history mirror.
func syncedFiles(ctx context.Context, ws *workspace.Workspace) ([]archive.File, error) {
	manifest, err := ws.Manifest()
	if err != nil {
		return nil, err
	}
	live := manifest.Live()
	files := make([]archive.File, 0, len(live))
	for _, p := range live.Paths() {
		edit := live[p]
		content, err := ws.Mirror().Read(ctx, p, edit.Version)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s v%d: %w", p, edit.Version, err)
		}
		files = append(files, archive.File{
			Path:       p,
			Version:    edit.Version,
			Content:    content,
			ModifiedAt: edit.Timestamp,
		})
	}
	return files, nil
}
