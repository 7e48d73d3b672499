// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt loads prompt templates and renders their {{name}}
// placeholders.
//
// Templates are looked up by name through a Loader chain (a user directory
// first, then the built-in defaults) and cached for the life of the
// Composer. A Watcher can invalidate cached entries when files in the user
// directory change.
//
// # Template Names
//
//	letter        {{notes}}                  (default main template)
//	questions     {{notes}} {{letter}}
//	answers       {{prompt}} {{answers}}
//	conversation  {{prompt}} {{history}}
//	title         {{notes}} {{letter}}
//	evaluation    {{notes}} {{reference}} {{letter}}
//	improvement   {{evaluations}}
package prompt
