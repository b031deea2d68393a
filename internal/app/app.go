package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kakiii/kmatch/internal/adapters/bbolt"
	"github.com/kakiii/kmatch/internal/adapters/excel"
	fsw "github.com/kakiii/kmatch/internal/adapters/fsnotify"
	"github.com/kakiii/kmatch/internal/adapters/registry"
	"github.com/kakiii/kmatch/internal/domain/dataset"
)

// App is the top-level container behind the CLI commands.
type App struct {
	Config *Config
	Log    *slog.Logger

	Store    *bbolt.Store
	Pipeline *Pipeline
}

// New opens the state store and assembles the pipeline. The caller owns
// the returned App and must Close it.
func New(cfg *Config) (*App, error) {
	log := NewLogger(cfg.Log)

	store, err := bbolt.NewStore(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	writer := dataset.NewWriter(cfg.Data.Dir, log)
	writer.ShardCeiling = cfg.Data.ShardCeiling
	writer.ShardCount = cfg.Data.ShardCount

	return &App{
		Config:   cfg,
		Log:      log,
		Store:    store,
		Pipeline: NewPipeline(store, writer, log),
	}, nil
}

// Close releases the state store.
func (a *App) Close() error {
	return a.Store.Close()
}

// Registry returns a client for the live register page.
func (a *App) Registry() *registry.Client {
	return registry.NewClient(registry.Config{
		URL:         a.Config.Registry.URL,
		Timeout:     a.Config.Registry.Timeout,
		Retries:     a.Config.Registry.Retries,
		RetryDelay:  a.Config.Registry.RetryDelay,
		MinInterval: a.Config.Registry.MinInterval,
		Logger:      a.Log,
	})
}

// ExportReader returns a row source for the export file at path.
func (a *App) ExportReader(path string) *excel.Reader {
	return excel.NewReader(path, a.Log)
}

// LatestExport resolves the freshest export in the configured exports
// directory.
func (a *App) LatestExport() (string, error) {
	return excel.LatestExport(a.Config.Exports.Dir)
}

// WatchExports monitors the exports directory and runs the pipeline on
// each settled export until ctx is done. Concurrent settles are
// serialized; a failed rebuild is logged and the watch continues.
func (a *App) WatchExports(ctx context.Context) error {
	w, err := fsw.NewWatcher(a.Config.Exports.Debounce, a.Log)
	if err != nil {
		return err
	}
	defer w.Stop()

	var mu sync.Mutex
	err = w.Watch(a.Config.Exports.Dir, func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		if _, err := a.Pipeline.Run(ctx, a.ExportReader(path)); err != nil {
			a.Log.Error("rebuild failed", "export", path, "error", err)
		}
	})
	if err != nil {
		return err
	}

	<-ctx.Done()
	return nil
}
