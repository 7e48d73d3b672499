// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/model"
)

const createTableSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id            TEXT PRIMARY KEY,
    title         TEXT NOT NULL DEFAULT '',
    patient_name  TEXT NOT NULL DEFAULT '',
    message_count INTEGER NOT NULL DEFAULT 0,
    created_at    INTEGER NOT NULL,
    saved_at      INTEGER NOT NULL,
    record        TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sessions_saved_at ON sessions(saved_at);
`

// =============================================================================
// SQLITE STORE
// =============================================================================

// SQLiteStore keeps one row per session. The full session is stored as JSON
// in the record column; summary columns are duplicated for listing.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string, logger *zap.Logger) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps ":memory:" databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec(createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logging.OrNop(logger).Named(logging.ComponentStorage),
	}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(sess *model.Session) SaveResult {
	if sess == nil {
		return SaveResult{Err: persistenceErr("", "save", errors.New("nil session"))}
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	sess.SavedAt = time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.SavedAt
	}

	record, err := json.Marshal(sess)
	if err != nil {
		return SaveResult{ID: sess.ID, Err: persistenceErr(sess.ID, "marshal", err)}
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO sessions
			(id, title, patient_name, message_count, created_at, saved_at, record)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID,
		sess.Title,
		sess.PatientName,
		len(sess.Messages),
		sess.CreatedAt.UnixNano(),
		sess.SavedAt.UnixNano(),
		string(record),
	)
	if err != nil {
		s.logger.Warn("save failed", zap.String("session", sess.ID), zap.Error(err))
		return SaveResult{ID: sess.ID, Err: persistenceErr(sess.ID, "insert", err)}
	}
	return SaveResult{Success: true, ID: sess.ID}
}

// Load implements Store.
func (s *SQLiteStore) Load(id string) (*model.Session, error) {
	var record string
	err := s.db.QueryRow(`SELECT record FROM sessions WHERE id = ?`, id).Scan(&record)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, persistenceErr(id, "select", err)
	}

	var sess model.Session
	if err := json.Unmarshal([]byte(record), &sess); err != nil {
		return nil, persistenceErr(id, "decode", err)
	}
	sess.Normalize()
	return &sess, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(id string) bool {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		s.logger.Warn("delete failed", zap.String("session", id), zap.Error(err))
		return false
	}
	n, _ := result.RowsAffected()
	return n > 0
}

// List implements Store.
func (s *SQLiteStore) List() ([]model.SessionSummary, error) {
	rows, err := s.db.Query(`
		SELECT id, title, patient_name, message_count, saved_at
		FROM sessions ORDER BY saved_at DESC`)
	if err != nil {
		return nil, persistenceErr("", "list", err)
	}
	defer rows.Close()

	summaries := make([]model.SessionSummary, 0)
	for rows.Next() {
		var sum model.SessionSummary
		var savedAt int64
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.PatientName, &sum.MessageCount, &savedAt); err != nil {
			return nil, persistenceErr("", "scan", err)
		}
		sum.SavedAt = time.Unix(0, savedAt)
		summaries = append(summaries, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, persistenceErr("", "list", err)
	}
	return summaries, nil
}

// Cleanup implements Store.
func (s *SQLiteStore) Cleanup() (int, error) {
	result, err := s.db.Exec(`DELETE FROM sessions WHERE title = '' AND patient_name = ''`)
	if err != nil {
		return 0, persistenceErr("", "cleanup", err)
	}
	n, _ := result.RowsAffected()
	if n > 0 {
		s.logger.Info("cleanup removed anonymous sessions", zap.Int64("count", n))
	}
	return int(n), nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
