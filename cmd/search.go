package cmd

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/urfave/cli/v3"
)

// SearchCommand creates the search command
func SearchCommand() *cli.Command {
	flags := append(queryFlags(),
		&cli.BoolFlag{
			Name:  "no-highlights",
			Usage: "Do not search highlighted text",
		},
		&cli.BoolFlag{
			Name:  "no-notes",
			Usage: "Do not search notes",
		},
		&cli.StringFlag{
			Name:  "url",
			Usage: "Only annotations of this page",
		},
	)

	return &cli.Command{
		Name:      "search",
		Usage:     "Search annotations containing every term, grouped by page",
		ArgsUsage: "TERM...",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			values := queryValues(c)
			values.Set("q", strings.Join(c.Args().Slice(), " "))
			if c.Bool("no-highlights") {
				values.Set("highlights", "false")
			}
			if c.Bool("no-notes") {
				values.Set("notes", "false")
			}
			if v := c.String("url"); v != "" {
				values.Set("url", v)
			}
			return searchAnnots(ctx, output(c), c.String("config"), values, c.Bool("json"))
		},
	}
}

func searchAnnots(ctx context.Context, w io.Writer, configPath string, values url.Values, asJSON bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	service, err := newService(cfg, store)
	if err != nil {
		return err
	}

	params, err := parseQuery(cfg, service, values)
	if err != nil {
		return err
	}

	pages, err := service.SearchAnnots(ctx, params)
	if err != nil {
		return fmt.Errorf("searching: %w", err)
	}

	if asJSON {
		return writeJSON(w, pages)
	}
	title := fmt.Sprintf("%q: %d annotations in %d pages", strings.Join(params.TermsInc, " "), pages.Count(), pages.Len())
	renderPages(w, title, pages, service.Location())
	return nil
}

// PageCommand creates the page command
func PageCommand() *cli.Command {
	flags := append(queryFlags(),
		&cli.IntFlag{
			Name:  "multiplier",
			Usage: "Over-fetch factor applied before filtering (default from config)",
		},
	)

	return &cli.Command{
		Name:      "page",
		Usage:     "List the annotations of a page, most recent first",
		ArgsUsage: "URL",
		Flags:     flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one page URL, got %d arguments", c.NArg())
			}
			values := queryValues(c)
			values.Set("url", c.Args().First())
			if c.IsSet("multiplier") {
				values.Set("multiplier", strconv.Itoa(c.Int("multiplier")))
			}
			return listPage(ctx, output(c), c.String("config"), values, c.Bool("json"))
		},
	}
}

func listPage(ctx context.Context, w io.Writer, configPath string, values url.Values, asJSON bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	service, err := newService(cfg, store)
	if err != nil {
		return err
	}

	params, err := parseQuery(cfg, service, values)
	if err != nil {
		return err
	}

	multiplier := 0
	if raw := values.Get("multiplier"); raw != "" {
		if multiplier, err = strconv.Atoi(raw); err != nil {
			return fmt.Errorf("parsing multiplier: %w", err)
		}
	}

	annots, err := service.ListAnnotsByPage(ctx, params, multiplier)
	if err != nil {
		return fmt.Errorf("listing page: %w", err)
	}

	if asJSON {
		return writeJSON(w, annots)
	}
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d annotations", len(annots))))
	if len(annots) == 0 {
		fmt.Fprintln(w, noDataStyle.Render("No annotations found."))
		return nil
	}
	renderPage(w, params.URL, annots, service.Location())
	return nil
}

// DaysCommand creates the days command
func DaysCommand() *cli.Command {
	return &cli.Command{
		Name:  "days",
		Usage: "List annotations grouped by day, newest first",
		Flags: queryFlags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			return listDays(ctx, output(c), c.String("config"), queryValues(c), c.Bool("json"))
		},
	}
}

func listDays(ctx context.Context, w io.Writer, configPath string, values url.Values, asJSON bool) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	service, err := newService(cfg, store)
	if err != nil {
		return err
	}

	params, err := parseQuery(cfg, service, values)
	if err != nil {
		return err
	}

	days, err := service.ListAnnotsByDay(ctx, params)
	if err != nil {
		return fmt.Errorf("listing days: %w", err)
	}

	if asJSON {
		return writeJSON(w, days)
	}
	renderDays(w, days, service.Location())
	return nil
}
