package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/rubiojr/annots/pkg/storage"
	"github.com/urfave/cli/v3"
)

// maintenanceStep is one named database maintenance operation.
type maintenanceStep struct {
	name string
	run  func(*storage.SQLite) error
}

var (
	stepOptimize   = maintenanceStep{"PRAGMA optimize", (*storage.SQLite).Optimize}
	stepAnalyze    = maintenanceStep{"ANALYZE", (*storage.SQLite).Analyze}
	stepVacuum     = maintenanceStep{"VACUUM", (*storage.SQLite).Vacuum}
	stepCheckpoint = maintenanceStep{"WAL checkpoint", (*storage.SQLite).WALCheckpoint}
	stepCheck      = maintenanceStep{"integrity check", (*storage.SQLite).IntegrityCheck}
)

// OptimizeCommand creates the optimize command
func OptimizeCommand() *cli.Command {
	sub := func(name, usage string, steps ...maintenanceStep) *cli.Command {
		return &cli.Command{
			Name:  name,
			Usage: usage,
			Action: func(ctx context.Context, c *cli.Command) error {
				return runMaintenance(output(c), c.String("config"), steps...)
			},
		}
	}

	return &cli.Command{
		Name:  "optimize",
		Usage: "Database optimization and maintenance commands",
		Commands: []*cli.Command{
			sub("check", "Run an integrity check on the database", stepCheck),
			sub("analyze", "Run ANALYZE to update query planner statistics", stepAnalyze),
			sub("vacuum", "Run VACUUM to defragment the database", stepVacuum),
			sub("checkpoint", "Run WAL checkpoint to flush changes", stepCheckpoint),
			sub("all", "Run all optimization operations (optimize, analyze, checkpoint)", stepOptimize, stepAnalyze, stepCheckpoint),
		},
	}
}

func runMaintenance(w io.Writer, configPath string, steps ...maintenanceStep) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	for _, step := range steps {
		fmt.Fprintf(w, "Running %s... ", step.name)
		if err := step.run(store); err != nil {
			fmt.Fprintf(w, "✗ FAILED - %v\n", err)
			return fmt.Errorf("%s: %w", step.name, err)
		}
		fmt.Fprintln(w, "✓ OK")
	}
	return nil
}
