// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the letterscribe command line.
//
// Command tree:
//
//	letterscribe chat                      Interactive letter drafting
//	letterscribe generate [notes-file]     One-shot letter from notes
//	letterscribe sessions list|show|export|delete|cleanup
//	letterscribe models list|use|check
//	letterscribe status                    Ollama and host summary
//	letterscribe config show|set-endpoint|set-model|set-prompt
//	letterscribe pipeline run <config>     Batch letter generation
//	letterscribe eval run <config>         Batch letter evaluation
//	letterscribe version
//
// Global flags:
//
//	--config PATH   Configuration file (default ~/.letterscribe/config.toml)
//	-v, --verbose   Debug logging
//
// Output is styled with lipgloss when stdout is a terminal. NO_COLOR disables
// colors. Destructive commands ask for confirmation on a terminal and require
// --yes otherwise.
package cli
