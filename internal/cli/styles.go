// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/letterscribe/internal/detect"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	// SectionStyle is used for section headers within a command.
	SectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("255")).
			MarginTop(1)

	// LabelStyle is used for left-aligned field labels.
	LabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(18)

	ValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	WarningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	// DimStyle is used for hints and secondary information.
	DimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	SeparatorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	// PromptStyle colors the chat input prompt.
	PromptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Bold(true)

	// LetterStyle frames generated letters.
	LetterStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// =============================================================================
// HELPERS
// =============================================================================

// RenderSeparator renders a horizontal rule. The default width is 70.
func RenderSeparator(width ...int) string {
	w := 70
	if len(width) > 0 && width[0] > 0 {
		w = width[0]
	}
	return SeparatorStyle.Render(strings.Repeat("=", w))
}

// RenderStatus renders a bracketed status tag.
// status is one of "ok", "error", "warning" or anything else for unknown.
func RenderStatus(status string) string {
	switch strings.ToLower(status) {
	case "ok", "success", "pass":
		return SuccessStyle.Render("[OK]")
	case "error", "fail", "failed":
		return ErrorStyle.Render("[FAIL]")
	case "warning", "warn", "pending":
		return WarningStyle.Render("[WARN]")
	default:
		return DimStyle.Render("[" + strings.ToUpper(status) + "]")
	}
}

// RenderField renders "label value" with the shared label width.
func RenderField(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

// RenderLevel colors a compatibility level.
func RenderLevel(l detect.Level) string {
	switch l {
	case detect.LevelEasy:
		return SuccessStyle.Render(l.String())
	case detect.LevelDifficult:
		return WarningStyle.Render(l.String())
	default:
		return ErrorStyle.Render(l.String())
	}
}

// RenderLetter frames a letter, wrapped to the terminal width.
func RenderLetter(text string) string {
	width := GetTerminalWidth() - 4
	if width > 100 {
		width = 100
	}
	if !ColorsEnabled() {
		return WrapText(text, width)
	}
	return LetterStyle.Width(width).Render(text)
}
