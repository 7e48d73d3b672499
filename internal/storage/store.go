// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/config"
	"github.com/jeranaias/letterscribe/internal/model"
)

// SQLiteFileName is the database file created inside the storage directory.
const SQLiteFileName = "sessions.db"

// Store persists sessions.
type Store interface {
	// Save assigns an ID when absent, stamps SavedAt and writes the full
	// record. The passed session is updated in place.
	Save(sess *model.Session) SaveResult

	// Load returns ErrSessionNotFound when id has no record.
	Load(id string) (*model.Session, error)

	// Delete reports whether a record was removed.
	Delete(id string) bool

	// List returns summaries ordered newest SavedAt first.
	List() ([]model.SessionSummary, error)

	// Cleanup deletes every session that has neither a title nor a patient
	// name, regardless of its messages, and returns how many were removed.
	Cleanup() (int, error)

	Close() error
}

// SaveResult is the structured outcome of Store.Save.
type SaveResult struct {
	Success bool
	ID      string
	Err     error
}

// Open creates the store selected by cfg.Backend.
func Open(cfg config.StorageConfig, logger *zap.Logger) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", config.BackendJSON:
		return NewFileStore(cfg.Dir, logger)
	case config.BackendSQLite:
		return NewSQLiteStore(filepath.Join(cfg.Dir, SQLiteFileName), logger)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// validID restricts IDs to characters that are safe as file names.
var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// sortNewestFirst orders summaries by SavedAt, most recent first.
func sortNewestFirst(summaries []model.SessionSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].SavedAt.After(summaries[j].SavedAt)
	})
}
