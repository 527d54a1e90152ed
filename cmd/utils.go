package cmd

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"

	"github.com/rubiojr/annots/pkg/config"
	"github.com/rubiojr/annots/pkg/log"
	"github.com/rubiojr/annots/pkg/search"
	"github.com/rubiojr/annots/pkg/storage"
	"github.com/urfave/cli/v3"
)

var logger = log.ForService("cmd")

// openStore opens the configured database, pointing at the command that
// fixes the most common failures.
func openStore(cfg *config.Config) (*storage.SQLite, error) {
	store, err := storage.Open(cfg.DBPath())
	if err != nil {
		if errors.Is(err, storage.ErrNotInitialized) {
			return nil, fmt.Errorf("%w (run 'annots init' first)", err)
		}
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return store, nil
}

func closeStore(store *storage.SQLite) {
	if err := store.Close(); err != nil {
		logger.Warnf("failed to close database: %v", err)
	}
}

// newService builds a search service backed by store, which also provides
// the install time.
func newService(cfg *config.Config, store *storage.SQLite) (*search.Service, error) {
	opts, err := cfg.SearchOptions()
	if err != nil {
		return nil, err
	}
	return search.NewService(store, store, opts), nil
}

// output returns the writer commands print to.
func output(c *cli.Command) io.Writer {
	if root := c.Root(); root != nil && root.Writer != nil {
		return root.Writer
	}
	return os.Stdout
}

// queryFlags are the filters shared by search, page and days.
func queryFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "limit",
			Usage: "Maximum number of results (pages, annotations or days)",
		},
		&cli.IntFlag{
			Name:  "skip",
			Usage: "Number of results to skip",
		},
		&cli.StringFlag{
			Name:  "start-date",
			Usage: "Only annotations edited on or after this date (YYYY-MM-DD)",
		},
		&cli.StringFlag{
			Name:  "end-date",
			Usage: "Only annotations edited on or before this date (YYYY-MM-DD)",
		},
		&cli.BoolFlag{
			Name:  "bookmarks",
			Usage: "Only bookmarked annotations",
		},
		&cli.StringSliceFlag{
			Name:  "tag",
			Usage: "Only annotations with this tag (can be repeated)",
		},
		&cli.StringSliceFlag{
			Name:  "not-tag",
			Usage: "Skip annotations with this tag (can be repeated)",
		},
		&cli.StringSliceFlag{
			Name:  "collection",
			Usage: "Only annotations in this collection (can be repeated)",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print results as JSON",
		},
	}
}

// queryValues maps the query flags onto the parameters understood by
// search.ParseSearchParams, so the CLI and the HTTP API parse alike.
func queryValues(c *cli.Command) url.Values {
	values := url.Values{}
	if c.IsSet("limit") {
		values.Set("limit", strconv.Itoa(c.Int("limit")))
	}
	if c.IsSet("skip") {
		values.Set("skip", strconv.Itoa(c.Int("skip")))
	}
	if v := c.String("start-date"); v != "" {
		values.Set("start_date", v)
	}
	if v := c.String("end-date"); v != "" {
		values.Set("end_date", v)
	}
	if c.Bool("bookmarks") {
		values.Set("bookmarks", "true")
	}
	for _, flag := range []struct{ name, param string }{
		{"tag", "tag"},
		{"not-tag", "not_tag"},
		{"collection", "collection"},
	} {
		for _, v := range c.StringSlice(flag.name) {
			values.Add(flag.param, v)
		}
	}
	return values
}

// parseQuery parses values with the configured defaults.
func parseQuery(cfg *config.Config, service *search.Service, values url.Values) (search.SearchParams, error) {
	params, err := search.ParseSearchParams(values, service.Location())
	if err != nil {
		return params, err
	}
	if !values.Has("limit") {
		params.Limit = cfg.DefaultLimit
	}
	return params, nil
}
