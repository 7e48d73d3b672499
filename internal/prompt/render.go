// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"strings"
)

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Render replaces every {{key}} in text whose key is present in subs.
//
// Placeholders with no entry in subs are left as they are. Substitution is a
// single left-to-right pass: inserted values are never scanned again, so a
// value containing "{{notes}}" is emitted literally.
func Render(text string, subs map[string]string) string {
	if len(subs) == 0 || !strings.Contains(text, openDelim) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))

	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			b.WriteString(rest)
			break
		}
		b.WriteString(rest[:start])
		after := rest[start+len(openDelim):]

		end := strings.Index(after, closeDelim)
		if end < 0 {
			b.WriteString(rest[start:])
			break
		}

		key := after[:end]
		if value, ok := subs[key]; ok && !strings.Contains(key, openDelim) {
			b.WriteString(value)
			rest = after[end+len(closeDelim):]
			continue
		}

		// Unknown key: keep the opening braces and resume scanning right
		// after them so a nested "{{known}}" is still found.
		b.WriteString(openDelim)
		rest = after
	}
	return b.String()
}

// Placeholders returns the distinct placeholder names in text, in order of
// first appearance.
func Placeholders(text string) []string {
	var names []string
	seen := make(map[string]bool)

	rest := text
	for {
		start := strings.Index(rest, openDelim)
		if start < 0 {
			return names
		}
		after := rest[start+len(openDelim):]
		end := strings.Index(after, closeDelim)
		if end < 0 {
			return names
		}
		key := after[:end]
		if strings.Contains(key, openDelim) {
			rest = after
			continue
		}
		if key != "" && !seen[key] {
			seen[key] = true
			names = append(names, key)
		}
		rest = after[end+len(closeDelim):]
	}
}
