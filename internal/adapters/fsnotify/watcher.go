// Package fsnotify implements the ports.Watcher interface using github.com/fsnotify/fsnotify.
// It monitors a single download directory for registry exports and debounces
// the write bursts that browsers and Excel produce while a file is still
// being written.
package fsnotify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long an export must stay quiet before it is
// reported. Downloads arrive as bursts of writes; only the trailing
// edge of the burst is a usable file.
const DefaultDebounce = 500 * time.Millisecond

// Watcher implements ports.Watcher using fsnotify.
type Watcher struct {
	fw       *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger
	done     chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	timers  map[string]*time.Timer
}

// NewWatcher creates a watcher. A debounce of zero or less selects
// DefaultDebounce.
func NewWatcher(debounce time.Duration, log *slog.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if log == nil {
		log = slog.Default()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		fw:       fw,
		debounce: debounce,
		log:      log,
		done:     make(chan struct{}),
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Watch starts monitoring dir for export files. onExport is called with
// the absolute path of each export once its writes settle.
func (w *Watcher) Watch(dir string, onExport func(path string)) error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return errors.New("watcher is stopped")
	}
	if w.started {
		w.mu.Unlock()
		return errors.New("watcher is already watching")
	}
	w.started = true
	w.mu.Unlock()

	absDir, err := filepath.Abs(dir)
	if err == nil {
		if addErr := w.fw.Add(absDir); addErr != nil {
			err = fmt.Errorf("watch %s: %w", absDir, addErr)
		}
	}
	if err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return err
	}
	w.log.Info("watching for exports", "dir", absDir, "debounce", w.debounce)

	go w.loop(onExport)
	return nil
}

func (w *Watcher) loop(onExport func(path string)) {
	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !relevantFile(filepath.Base(event.Name)) {
				continue
			}
			w.schedule(event.Name, onExport)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("watch error", "error", err)

		case <-w.done:
			return
		}
	}
}

// schedule arms (or re-arms) the settle timer for path. Every new write
// pushes the callback out by the full debounce window, so it fires only
// after the file has gone quiet.
func (w *Watcher) schedule(path string, onExport func(path string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.timers, path)
		stopped := w.stopped
		w.mu.Unlock()
		if stopped {
			return
		}
		// The file may have been renamed or removed during the settle
		// window (browsers finish downloads with a rename).
		if _, err := os.Stat(path); err != nil {
			return
		}
		w.log.Info("export settled", "path", path)
		onExport(path)
	})
}

// Stop ends monitoring and releases all resources.
// Safe to call multiple times.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
	close(w.done)
	return w.fw.Close()
}

// relevantFile reports whether name looks like a finished export.
// Office lock files ("~$..."), hidden files, and in-progress download
// artifacts never do.
func relevantFile(name string) bool {
	if strings.HasPrefix(name, "~$") || strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".csv":
		return true
	}
	return false
}
