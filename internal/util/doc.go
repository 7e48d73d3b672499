// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds the small helpers shared by the letterscribe packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file write (temp file, fsync, rename)
//   - TruncateRunes: rune-safe truncation with an ellipsis
//   - FirstRunes: rune-safe prefix without an ellipsis
//   - CollapseSpace: fold runs of whitespace into single spaces
//
// Session records and the config file are both written through
// AtomicWriteFile so that a crash mid-write leaves either the old or the new
// file on disk, never a torn one.
package util
