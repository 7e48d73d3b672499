// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/storage"
)

// DefaultDelay is the debounce window between the last edit and the write.
const DefaultDelay = 3 * time.Second

// SnapshotFunc returns a deep copy of the session to persist.
type SnapshotFunc func() *model.Session

// SaveFunc persists a snapshot. storage.Store.Save satisfies it.
type SaveFunc func(sess *model.Session) storage.SaveResult

// Options configures an Autosaver.
type Options struct {
	// Delay between the last Schedule call and the write. Zero means DefaultDelay.
	Delay time.Duration

	// OnSaved is called after every successful write.
	OnSaved func(result storage.SaveResult)

	// OnError is called when a write fails. The autosaver stays dirty.
	OnError func(err error)
}

// =============================================================================
// AUTOSAVER
// =============================================================================

// Autosaver debounces session writes.
type Autosaver struct {
	mu       sync.Mutex
	timer    *time.Timer
	gen      uint64 // incremented on every arm/cancel; stale timers compare against it
	version  uint64 // incremented on every Schedule
	saved    uint64 // version covered by the last successful write
	stopped  bool
	writeMu  sync.Mutex
	snapshot SnapshotFunc
	save     SaveFunc
	opts     Options
	logger   *zap.Logger
}

// NewAutosaver creates an idle autosaver.
func NewAutosaver(snapshot SnapshotFunc, save SaveFunc, opts Options, logger *zap.Logger) *Autosaver {
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	return &Autosaver{
		snapshot: snapshot,
		save:     save,
		opts:     opts,
		logger:   logging.OrNop(logger).Named(logging.ComponentAutosave),
	}
}

// Delay returns the configured debounce window.
func (a *Autosaver) Delay() time.Duration {
	return a.opts.Delay
}

// Schedule marks the session dirty and (re)starts the timer.
// Calls after Stop are ignored.
func (a *Autosaver) Schedule() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}

	a.version++
	a.cancelLocked()
	gen := a.gen
	a.timer = time.AfterFunc(a.opts.Delay, func() { a.fire(gen) })
}

// Dirty reports whether there are edits not yet covered by a successful write.
func (a *Autosaver) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version > a.saved
}

// Pending reports whether a timer is armed.
func (a *Autosaver) Pending() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.timer != nil
}

// Flush cancels the timer and writes immediately when dirty. It returns the
// write result and whether a write was attempted.
func (a *Autosaver) Flush() (storage.SaveResult, bool) {
	a.mu.Lock()
	a.cancelLocked()
	dirty := a.version > a.saved
	a.mu.Unlock()

	if !dirty {
		return storage.SaveResult{}, false
	}
	return a.write(), true
}

// SaveNow writes immediately regardless of the dirty flag. Used when a
// change must be persisted before the debounce window ends.
func (a *Autosaver) SaveNow() storage.SaveResult {
	a.mu.Lock()
	a.cancelLocked()
	a.mu.Unlock()
	return a.write()
}

// Stop cancels any pending timer without writing. Later Schedule calls are
// ignored; Flush and SaveNow still work.
func (a *Autosaver) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.cancelLocked()
}

// cancelLocked must be called with a.mu held.
func (a *Autosaver) cancelLocked() {
	a.gen++
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *Autosaver) fire(gen uint64) {
	a.mu.Lock()
	if gen != a.gen || a.stopped {
		a.mu.Unlock()
		return
	}
	a.timer = nil
	a.mu.Unlock()

	a.write()
}

func (a *Autosaver) write() storage.SaveResult {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()

	a.mu.Lock()
	version := a.version
	a.mu.Unlock()

	snap := a.snapshot()
	if snap == nil {
		return storage.SaveResult{}
	}

	result := a.save(snap)
	if !result.Success {
		a.logger.Warn("autosave failed",
			zap.String("session", snap.ID),
			zap.Error(result.Err))
		if a.opts.OnError != nil {
			a.opts.OnError(result.Err)
		}
		return result
	}

	a.mu.Lock()
	if version > a.saved {
		a.saved = version
	}
	a.mu.Unlock()

	a.logger.Debug("session saved",
		zap.String("session", result.ID),
		zap.Int("messages", snap.MessageCount()))
	if a.opts.OnSaved != nil {
		a.opts.OnSaved(result)
	}
	return result
}
