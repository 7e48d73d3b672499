// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"regexp"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/letterscribe/internal/util"
)

// QuestionsMarker separates reasoning from the question list when the model
// does not use thinking tags.
const QuestionsMarker = "QUESTIONS:"

// DefaultTitleWidth is the sidebar column budget for titles.
const DefaultTitleWidth = 50

var (
	thinkBlockRegex   = regexp.MustCompile(`(?is)<think>.*?</think>`)
	thinkCloseRegex   = regexp.MustCompile(`(?is)^.*</think>`)
	numberedLineRegex = regexp.MustCompile(`^\s*\d+\.\s*(.*)$`)
	tagRegex          = regexp.MustCompile(`<[^>]*>`)
	titlePrefixRegex  = regexp.MustCompile(`(?i)^title\s*:\s*`)
)

// =============================================================================
// THINKING SEGMENTS
// =============================================================================

// StripThinking removes the model's reasoning from raw output.
//
// A <think>...</think> block wins. A dangling </think> drops everything before
// it. Otherwise, when QuestionsMarker is present, the text before the marker
// (and the marker itself) is dropped.
func StripThinking(raw string) string {
	if thinkBlockRegex.MatchString(raw) {
		return strings.TrimSpace(thinkBlockRegex.ReplaceAllString(raw, ""))
	}
	if thinkCloseRegex.MatchString(raw) {
		return strings.TrimSpace(thinkCloseRegex.ReplaceAllString(raw, ""))
	}
	if i := strings.Index(raw, QuestionsMarker); i >= 0 {
		return strings.TrimSpace(raw[i+len(QuestionsMarker):])
	}
	return strings.TrimSpace(raw)
}

// =============================================================================
// QUESTION EXTRACTION
// =============================================================================

// ExtractQuestions returns the visible text of a questions reply and the
// questions found in it.
//
// Lines starting with a numeral and a period become questions, in order, with
// the numeral stripped. When no line matches, the whole visible text is one
// question. Empty visible text yields no questions.
func ExtractQuestions(raw string) (string, []string) {
	visible := StripThinking(raw)
	if visible == "" {
		return "", nil
	}

	var questions []string
	for _, line := range strings.Split(visible, "\n") {
		m := numberedLineRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if q := strings.TrimSpace(m[1]); q != "" {
			questions = append(questions, q)
		}
	}

	if len(questions) == 0 {
		return visible, []string{visible}
	}
	return visible, questions
}

// =============================================================================
// TITLES
// =============================================================================

// CleanTitle turns a raw title reply into a single-line sidebar label no
// wider than maxWidth columns. maxWidth <= 0 uses DefaultTitleWidth.
func CleanTitle(raw string, maxWidth int) string {
	if maxWidth <= 0 {
		maxWidth = DefaultTitleWidth
	}

	title := StripThinking(raw)
	title = tagRegex.ReplaceAllString(title, "")
	title = util.CollapseSpace(title)
	title = titlePrefixRegex.ReplaceAllString(title, "")
	title = strings.Trim(title, "\"'`*“”‘’ ")
	title = norm.NFC.String(title)

	return runewidth.Truncate(title, maxWidth, "…")
}
