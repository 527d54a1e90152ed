package main

import (
	"context"
	"log"
	"os"

	"github.com/rubiojr/annots/cmd"
	"github.com/rubiojr/annots/pkg/config"
	annotslog "github.com/rubiojr/annots/pkg/log"
	"github.com/urfave/cli/v3"
)

func main() {
	if err := config.LoadEnvFile(".env"); err != nil {
		log.Fatal(err)
	}

	app := &cli.Command{
		Name:  "annots",
		Usage: "Search and browse web page annotations",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug logging",
				Value: false,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "Configuration file path",
				Value: getDefaultConfigPathOrExit(),
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			annotslog.SetGlobalDebug(c.Bool("debug"))
			return ctx, nil
		},
		Commands: cmd.Commands(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func getDefaultConfigPathOrExit() string {
	path, err := config.GetDefaultConfigPath()
	if err != nil {
		log.Fatalf("Failed to get default config path: %v", err)
	}
	return path
}
