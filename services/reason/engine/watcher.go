// Copyright (C) 2025 NeuroSym Authors (maintainers@neurosym.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/neurosym/neurosym/services/reason/schema"
)

// DefaultDebounceWindow is how long the watcher waits for further
// writes before reloading. Editors often emit several events per save.
const DefaultDebounceWindow = 200 * time.Millisecond

// SchemaWatcher reloads an engine whenever its schema file changes.
//
// # Description
//
// Watches the directory containing the schema file (editors commonly
// replace files by rename, which drops a watch placed on the file
// itself) and debounces events before reloading. A file that fails to
// parse or validate is logged and skipped; the engine keeps serving
// the last good graph.
//
// # Thread Safety
//
// Safe for concurrent use. Reloads happen from a single goroutine.
type SchemaWatcher struct {
	path     string
	engine   *Engine
	watcher  *fsnotify.Watcher
	debounce time.Duration
	log      *slog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu       sync.RWMutex
	watching bool
}

// SchemaWatcherOptions configures the SchemaWatcher.
type SchemaWatcherOptions struct {
	// DebounceWindow is how long to wait for more writes before
	// reloading. Default: 200ms
	DebounceWindow time.Duration

	// Logger receives reload outcomes. If nil, the default slog logger
	// is used.
	Logger *slog.Logger
}

// NewSchemaWatcher creates a watcher for the schema file at path,
// reloading e on changes. Call Start to begin watching.
func NewSchemaWatcher(path string, e *Engine, opts *SchemaWatcherOptions) (*SchemaWatcher, error) {
	if opts == nil {
		opts = &SchemaWatcherOptions{}
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving schema path: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	return &SchemaWatcher{
		path:     abs,
		engine:   e,
		watcher:  fsw,
		debounce: opts.DebounceWindow,
		log:      log,
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching. It returns immediately; reloads happen in a
// background goroutine until Stop is called or ctx is cancelled.
func (w *SchemaWatcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(w.path), err)
	}

	w.mu.Lock()
	w.watching = true
	w.mu.Unlock()

	go w.loop(ctx)
	return nil
}

// Stop ends watching and releases the underlying watcher.
func (w *SchemaWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		_ = w.watcher.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// IsWatching reports whether the watcher is active.
func (w *SchemaWatcher) IsWatching() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.watching
}

func (w *SchemaWatcher) loop(ctx context.Context) {
	var timer *time.Timer
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.Stop()
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			pending = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("schema watcher error", "error", err)
		case <-pending:
			pending = nil
			w.reload()
		}
	}
}

// reload parses the schema file and swaps it into the engine. Parse or
// validation failures keep the current graph.
func (w *SchemaWatcher) reload() {
	doc, err := LoadDocument(w.path)
	if err != nil {
		w.log.Warn("schema reload skipped", "path", w.path, "error", err)
		return
	}
	if _, err := w.engine.Reload(doc); err != nil {
		w.log.Warn("schema reload rejected", "path", w.path, "error", err)
		return
	}
	w.log.Info("schema reloaded from file", "path", w.path)
}

// LoadDocument reads and parses a schema document from path. The
// format is chosen by extension: .yaml/.yml parse as YAML, anything
// else as JSON.
func LoadDocument(path string) (*schema.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return schema.ParseYAML(data)
	default:
		return schema.ParseJSON(data)
	}
}
