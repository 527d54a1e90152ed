package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/rubiojr/annots/pkg/storage"
	"github.com/urfave/cli/v3"
)

// InitCommand creates the init command
func InitCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Initialize configuration and database",
		Action: func(ctx context.Context, c *cli.Command) error {
			return initialize(ctx, output(c), c.String("config"), time.Now())
		},
	}
}

// initialize writes the configuration template if missing, creates the
// database and records the install time on first run.
func initialize(ctx context.Context, w io.Writer, configPath string, now time.Time) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err := config.GetDefaultConfig()
		if err != nil {
			return err
		}
		if err := cfg.SaveTemplateConfig(configPath); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
		fmt.Fprintf(w, "Configuration initialized at %s\n", configPath)
	} else {
		fmt.Fprintf(w, "Using existing configuration at %s\n", configPath)
	}

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := storage.Create(cfg.DBPath())
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	defer closeStore(store)

	installed, err := store.EnsureInstallTime(ctx, now)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Database ready at %s (installed %s)\n", cfg.DBPath(), installed.Format(time.RFC3339))
	return nil
}
