// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps one <id>.json file per session in BaseDir.
type FileStore struct {
	// BaseDir is the directory for session files
	BaseDir string

	mu     sync.Mutex
	logger *zap.Logger
}

// NewFileStore creates a store rooted at baseDir, creating it if needed.
func NewFileStore(baseDir string, logger *zap.Logger) (*FileStore, error) {
	if baseDir == "" {
		return nil, errors.New("storage directory not set")
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &FileStore{
		BaseDir: baseDir,
		logger:  logging.OrNop(logger).Named(logging.ComponentStorage),
	}, nil
}

// Save implements Store.
func (s *FileStore) Save(sess *model.Session) SaveResult {
	if sess == nil {
		return SaveResult{Err: persistenceErr("", "save", errors.New("nil session"))}
	}
	if sess.ID == "" {
		sess.ID = uuid.NewString()
	}
	if !validID.MatchString(sess.ID) {
		return SaveResult{ID: sess.ID, Err: persistenceErr(sess.ID, "save", errors.New("invalid session id"))}
	}
	sess.SavedAt = time.Now()
	if sess.CreatedAt.IsZero() {
		sess.CreatedAt = sess.SavedAt
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return SaveResult{ID: sess.ID, Err: persistenceErr(sess.ID, "marshal", err)}
	}

	s.mu.Lock()
	err = util.AtomicWriteFile(s.filePath(sess.ID), data, 0600)
	s.mu.Unlock()
	if err != nil {
		s.logger.Warn("save failed", zap.String("session", sess.ID), zap.Error(err))
		return SaveResult{ID: sess.ID, Err: persistenceErr(sess.ID, "write", err)}
	}

	s.logger.Debug("session saved", zap.String("session", sess.ID), zap.Int("messages", len(sess.Messages)))
	return SaveResult{Success: true, ID: sess.ID}
}

// Load implements Store.
func (s *FileStore) Load(id string) (*model.Session, error) {
	if !validID.MatchString(id) {
		return nil, notFound(id)
	}

	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id)
		}
		return nil, persistenceErr(id, "read", err)
	}

	var sess model.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, persistenceErr(id, "decode", err)
	}
	if sess.ID == "" {
		sess.ID = id
	}
	sess.Normalize()
	return &sess, nil
}

// Delete implements Store.
func (s *FileStore) Delete(id string) bool {
	if !validID.MatchString(id) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath(id)); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("delete failed", zap.String("session", id), zap.Error(err))
		}
		return false
	}
	return true
}

// List implements Store. Unreadable files are skipped.
func (s *FileStore) List() ([]model.SessionSummary, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []model.SessionSummary{}, nil
		}
		return nil, persistenceErr("", "list", err)
	}

	summaries := make([]model.SessionSummary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")

		sess, err := s.Load(id)
		if err != nil {
			s.logger.Warn("skipping unreadable session", zap.String("file", entry.Name()), zap.Error(err))
			continue
		}
		summaries = append(summaries, sess.Summary())
	}

	sortNewestFirst(summaries)
	return summaries, nil
}

// Cleanup implements Store.
func (s *FileStore) Cleanup() (int, error) {
	summaries, err := s.List()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, sum := range summaries {
		if sum.IsAnonymous() && s.Delete(sum.ID) {
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("cleanup removed anonymous sessions", zap.Int("count", removed))
	}
	return removed, nil
}

// Close implements Store.
func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}
