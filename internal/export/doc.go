// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes saved sessions to files a clinician can send or
// archive.
//
// # Formats
//
//   - FormatText: the latest letter only, as plain text
//   - FormatMarkdown: YAML front matter, the latest letter and optionally
//     the full drafting history
//   - FormatJSON: the complete session record
//
// # Usage
//
//	exporter, err := export.New(export.FormatMarkdown, nil)
//	path, err := export.ToFile(sess, exporter, "out")
package export
