package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/urfave/cli/v3"
)

// StatsCommand creates the stats command
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show statistics",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Print statistics as JSON",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return showStats(ctx, output(c), c.String("config"), c.Bool("json"))
		},
	}
}

// showStats displays storage statistics
func showStats(ctx context.Context, w io.Writer, configPath string, asJSON bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("getting stats: %w", err)
	}

	if asJSON {
		return writeJSON(w, stats)
	}
	formatStats(w, stats, time.Now())
	return nil
}
