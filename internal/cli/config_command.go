package cli

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/docsync/internal/config"
	"github.com/klauern/docsync/internal/ui"
	"github.com/klauern/docsync/internal/util"
)

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display or initialize configuration",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			data, err := yaml.Marshal(configFrom(ctx))
			if err != nil {
				return err
			}
			w := output(cmd)
			fmt.Fprintf(w, "# %s\n", config.FilePath())
			_, err = w.Write(data)
			return err
		},
		Commands: []*cli.Command{
			{
				Name:  "path",
				Usage: "Print the default config file path",
				Action: func(_ context.Context, cmd *cli.Command) error {
					fmt.Fprintln(output(cmd), config.FilePath())
					return nil
				},
			},
			{
				Name:      "init",
				Usage:     "Write the default configuration",
				UsageText: "docsync config init [--force] [file]",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					path := config.FilePath()
					if cmd.Args().Len() > 0 {
						path = util.ExpandPath(cmd.Args().First())
					}
					if util.FileExists(path) && !cmd.Bool("force") {
						return fmt.Errorf("%s already exists (use --force to overwrite)", path)
					}
					if err := config.Default().SaveToPath(path); err != nil {
						return err
					}
					fmt.Fprintf(output(cmd), "%s Wrote %s\n", ui.Success(ui.SymbolSuccess), path)
					return nil
				},
			},
		},
	}
}
