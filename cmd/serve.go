package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rubiojr/annots/pkg/api"
	"github.com/rubiojr/annots/pkg/config"
	"github.com/rubiojr/annots/pkg/core"
	"github.com/rubiojr/annots/pkg/importer"
	"github.com/rubiojr/annots/pkg/maintenance"
	"github.com/rubiojr/annots/pkg/storage"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 10 * time.Second

// ServeCommand creates the serve command
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Listen address (overrides [api] listen)",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			return serve(ctx, c.String("config"), c.String("listen"))
		},
	}
}

// reloadableHandler serves the most recently stored handler, so a
// configuration reload never drops the listener.
type reloadableHandler struct {
	current atomic.Pointer[http.Handler]
}

func (h *reloadableHandler) Store(next http.Handler) {
	h.current.Store(&next)
}

func (h *reloadableHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	(*h.current.Load()).ServeHTTP(w, r)
}

// buildHandler wires the search service, the operation registry and the
// importer into the API handler for cfg.
func buildHandler(cfg *config.Config, store *storage.SQLite) (http.Handler, error) {
	service, err := newService(cfg, store)
	if err != nil {
		return nil, err
	}

	registry := core.NewRegistry()
	if err := service.RegisterOperations(registry); err != nil {
		return nil, err
	}

	server := api.NewServer(service, registry,
		api.WithStats(store),
		api.WithImporter(importer.New(store), cfg.API.APIKey),
	)
	return server.Handler(), nil
}

// serve runs the API and the maintenance scheduler until interrupted.
// SIGHUP and config file changes rebuild the handler in place.
func serve(ctx context.Context, configPath, listenOverride string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore(store)

	handler := &reloadableHandler{}
	initial, err := buildHandler(cfg, store)
	if err != nil {
		return err
	}
	handler.Store(initial)

	listen := cfg.API.Listen
	if listenOverride != "" {
		listen = listenOverride
	}
	if cfg.API.APIKey == "" {
		logger.Infof("api_key not set, POST /api/import is disabled")
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	scheduler := maintenance.NewScheduler(maintenance.Config{Interval: cfg.OptimizeInterval.Duration}, store)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Infof("listening on http://%s", listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	reload := func() {
		newCfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Errorf("failed to reload configuration: %v", err)
			return
		}
		if newCfg.DBPath() != cfg.DBPath() {
			logger.Warnf("storage_dir changed to %s, restart to use it", newCfg.StorageDir)
		}
		if listenOverride == "" && newCfg.API.Listen != listen {
			logger.Warnf("listen address changed to %s, restart to use it", newCfg.API.Listen)
		}
		next, err := buildHandler(newCfg, store)
		if err != nil {
			logger.Errorf("failed to rebuild handler: %v", err)
			return
		}
		handler.Store(next)
		logger.Infof("configuration reloaded")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	// Nil channels block forever, which disables the watcher cases below
	// when the watcher cannot be created.
	var (
		events    <-chan fsnotify.Event
		watchErrs <-chan error
	)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Warnf("failed to create config file watcher: %v", err)
	} else {
		defer func() {
			if err := watcher.Close(); err != nil {
				logger.Warnf("failed to close config file watcher: %v", err)
			}
		}()
		if err := watcher.Add(configPath); err != nil {
			logger.Warnf("failed to watch config file %s: %v", configPath, err)
		} else {
			logger.Infof("watching config file for changes: %s", configPath)
		}
		events, watchErrs = watcher.Events, watcher.Errors
	}

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down: %w", err)
		}
		return nil
	}

	for {
		select {
		case err := <-serverErr:
			return fmt.Errorf("serving: %w", err)
		case <-ctx.Done():
			return shutdown()
		case sig := <-sigCh:
			switch sig {
			case syscall.SIGHUP:
				logger.Infof("received SIGHUP, reloading configuration")
				reload()
			default:
				logger.Infof("shutting down")
				return shutdown()
			}
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			// Editors often replace the file instead of writing it in place.
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Infof("config file changed (%s), reloading configuration", event.Op)
			if event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				time.Sleep(200 * time.Millisecond)
				if _, err := os.Stat(configPath); os.IsNotExist(err) {
					logger.Warnf("config file was removed and not replaced, skipping reload")
					continue
				}
				if err := watcher.Add(configPath); err != nil {
					logger.Warnf("failed to re-add config file to watcher: %v", err)
				}
			} else {
				time.Sleep(100 * time.Millisecond)
			}
			reload()
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			logger.Warnf("config file watcher error: %v", err)
		}
	}
}
