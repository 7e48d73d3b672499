// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides session persistence for letterscribe.
//
// Every session is stored as one complete record addressed by its ID. Saves
// are last-writer-wins; there is no optimistic concurrency.
//
// # Key Types
//
//   - Store: the persistence contract used by the orchestrator and CLI
//   - FileStore: one JSON file per session (default)
//   - SQLiteStore: one row per session in a SQLite database
//   - SaveResult: structured save outcome; save failures are never panics
//
// # Usage
//
//	store, err := storage.Open(cfg.Storage, logger)
//	res := store.Save(sess)
//	if !res.Success {
//	    log.Warn("save failed", zap.Error(res.Err))
//	}
//	summaries, err := store.List() // newest first
//
// # Storage Location
//
// Sessions are stored in ~/.letterscribe/sessions/ unless configured otherwise.
package storage
