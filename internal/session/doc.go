// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the debounced autosave scheduler for an open
// conversation.
//
// # Key Types
//
//   - Autosaver: fixed-delay save timer with Schedule/Flush/Stop
//   - SnapshotFunc: returns a cloned session to persist
//   - SaveFunc: writes a snapshot and reports a storage.SaveResult
//
// # Usage
//
//	saver := session.NewAutosaver(snapshot, store.Save, session.Options{
//	    Delay:   3 * time.Second,
//	    OnError: func(err error) { log.Println(err) },
//	}, logger)
//	defer saver.Flush()
//
// Every edit to the conversation calls Schedule. Only the timer armed by the
// most recent Schedule call writes; earlier timers are cancelled.
package session
