// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
)

// DefaultDebounce is the quiet period before a changed template is invalidated.
const DefaultDebounce = 200 * time.Millisecond

// Invalidator is implemented by Composer.
type Invalidator interface {
	Invalidate(name string)
}

// =============================================================================
// FSNOTIFY WATCHER
// =============================================================================

// Watcher invalidates cached templates when their files change on disk.
type Watcher struct {
	target   Invalidator
	dir      string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time // template name -> last change time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a watcher for dir. Call Start to begin watching.
func NewWatcher(target Invalidator, dir string, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		target:   target,
		dir:      dir,
		watcher:  fw,
		debounce: debounce,
		logger:   logging.OrNop(logger).Named(logging.ComponentPrompt),
		pending:  make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start adds the directory to the watch list and starts processing events.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.wg.Add(2)
	go w.processEvents()
	go w.processPending()
	return nil
}

// Close stops watching and waits for the goroutines to exit.
func (w *Watcher) Close() error {
	w.cancel()
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	const interesting = fsnotify.Write | fsnotify.Create | fsnotify.Remove | fsnotify.Rename
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&interesting == 0 {
				continue
			}
			if name, ok := templateName(event.Name); ok {
				w.mu.Lock()
				w.pending[name] = time.Now()
				w.mu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) processPending() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce / 4)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return

		case <-ticker.C:
			now := time.Now()

			w.mu.Lock()
			var ready []string
			for name, changed := range w.pending {
				if now.Sub(changed) >= w.debounce {
					ready = append(ready, name)
					delete(w.pending, name)
				}
			}
			w.mu.Unlock()

			for _, name := range ready {
				w.target.Invalidate(name)
			}
		}
	}
}

// templateName maps a changed path to the template name it backs.
func templateName(path string) (string, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	for _, known := range Extensions {
		if strings.EqualFold(ext, known) {
			name := strings.TrimSuffix(base, ext)
			return name, name != ""
		}
	}
	return "", false
}
