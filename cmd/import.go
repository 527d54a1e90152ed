package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/rubiojr/annots/pkg/importer"
	"github.com/urfave/cli/v3"
)

// ImportCommand creates the import command
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Import annotations from a JSON export file",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "batch-size",
				Usage: "Annotations written per transaction",
				Value: importer.DefaultBatchSize,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one export file, got %d arguments", c.NArg())
			}
			return importExport(ctx, output(c), c.String("config"), c.Args().First(), c.Int("batch-size"))
		},
	}
}

func importExport(ctx context.Context, w io.Writer, configPath, path string, batchSize int) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	result, err := importer.New(store, importer.WithBatchSize(batchSize)).ImportFile(ctx, path)
	if err != nil {
		return fmt.Errorf("importing %s: %w", path, err)
	}

	fmt.Fprintf(w, "Imported %d annotations (%d rejected), %d bookmarks, %d tags, %d collections\n",
		result.Accepted, result.Rejected, result.Bookmarks, result.Tags, result.Lists)
	for _, msg := range result.Errors {
		fmt.Fprintf(w, "  - %s\n", msg)
	}
	return nil
}
