package cmd

import "github.com/urfave/cli/v3"

// Commands returns every annots subcommand.
func Commands() []*cli.Command {
	return []*cli.Command{
		InitCommand(),
		ImportCommand(),
		SearchCommand(),
		PageCommand(),
		DaysCommand(),
		ServeCommand(),
		StatsCommand(),
		OptimizeCommand(),
		MigrateCommand(),
		VersionCommand(),
	}
}
