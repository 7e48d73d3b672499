// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import "strings"

// TruncateRunes truncates s to at most maxRunes characters. When s is cut,
// the last three characters are replaced by "...".
func TruncateRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}

// FirstRunes returns the first n characters of s without adding an ellipsis.
func FirstRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// CollapseSpace replaces every run of whitespace (newlines included) with a
// single space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
