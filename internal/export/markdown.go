// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/letterscribe/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter writes the latest letter as a Markdown document.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

type frontMatter struct {
	Title    string    `yaml:"title,omitempty"`
	Patient  string    `yaml:"patient,omitempty"`
	Model    string    `yaml:"model,omitempty"`
	Session  string    `yaml:"session,omitempty"`
	Created  time.Time `yaml:"created"`
	Saved    time.Time `yaml:"saved,omitempty"`
	Messages int       `yaml:"messages"`
	Exported time.Time `yaml:"exported"`
}

// Export implements Exporter.
func (e *MarkdownExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	letter := sess.LastLetter()
	if letter == nil {
		return nil, ErrNoLetter
	}

	var sb strings.Builder
	if e.options.IncludeMetadata {
		fm, err := yaml.Marshal(frontMatter{
			Title:    sess.Title,
			Patient:  sess.PatientName,
			Model:    sess.Model,
			Session:  sess.ID,
			Created:  sess.CreatedAt,
			Saved:    sess.SavedAt,
			Messages: len(sess.Messages),
			Exported: e.options.now(),
		})
		if err != nil {
			return nil, fmt.Errorf("encode front matter: %w", err)
		}
		sb.WriteString("---\n")
		sb.Write(fm)
		sb.WriteString("---\n\n")
	}

	sb.WriteString("# " + escapeMarkdown(heading(sess)) + "\n\n")
	sb.WriteString(strings.TrimSpace(letter.Content))
	sb.WriteString("\n")

	if e.options.IncludeHistory {
		sb.WriteString("\n---\n\n## Drafting history\n\n")
		for i, msg := range sess.Messages {
			sb.WriteString(fmt.Sprintf("### %d. %s%s <sub>%s</sub>\n\n",
				i+1, msg.Role.DisplayName(), kindLabel(msg), msg.Timestamp.Format("2006-01-02 15:04")))
			sb.WriteString(strings.TrimSpace(msg.Content))
			sb.WriteString("\n\n")
		}
	}
	return []byte(sb.String()), nil
}

// FileExtension implements Exporter.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

func heading(sess *model.Session) string {
	switch {
	case sess.Title != "":
		return sess.Title
	case sess.PatientName != "":
		return "Referral letter for " + sess.PatientName
	default:
		return "Referral letter"
	}
}

func kindLabel(msg *model.Message) string {
	switch {
	case msg.IsLetter:
		return " (letter)"
	case msg.IsQuestions:
		return " (questions)"
	default:
		return ""
	}
}

// escapeMarkdown escapes characters that break headings.
func escapeMarkdown(s string) string {
	s = strings.ReplaceAll(s, "#", "\\#")
	s = strings.ReplaceAll(s, "*", "\\*")
	s = strings.ReplaceAll(s, "_", "\\_")
	s = strings.ReplaceAll(s, "[", "\\[")
	s = strings.ReplaceAll(s, "]", "\\]")
	return s
}
