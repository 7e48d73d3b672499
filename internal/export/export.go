// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/util"
)

// ErrNoLetter is returned by exporters that need a letter when the session
// has none yet.
var ErrNoLetter = errors.New("session has no letter yet")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter renders a session in one file format.
type Exporter interface {
	Export(sess *model.Session) ([]byte, error)

	// FileExtension returns the extension including the dot.
	FileExtension() string
}

// Format names an export format.
type Format string

const (
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
	FormatJSON     Format = "json"
)

// Formats lists the accepted format names.
func Formats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatJSON}
}

// ParseFormat accepts a format name or a common alias.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "txt", "text":
		return FormatText, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (want one of %v)", s, Formats())
	}
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// IncludeMetadata adds the front matter block to Markdown exports.
	IncludeMetadata bool

	// IncludeHistory appends every message to Markdown exports.
	IncludeHistory bool

	// Now stamps the export; nil means time.Now.
	Now func() time.Time
}

// DefaultOptions returns metadata on and history off.
func DefaultOptions() *Options {
	return &Options{IncludeMetadata: true}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// New returns the exporter for format.
func New(format Format, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch format {
	case FormatText:
		return &TextExporter{}, nil
	case FormatMarkdown:
		return NewMarkdownExporter(opts), nil
	case FormatJSON:
		return &JSONExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ToFile exports sess into dir and returns the written path. The file name
// is derived from the patient name or title and the session ID.
func ToFile(sess *model.Session, exporter Exporter, dir string) (string, error) {
	if sess == nil {
		return "", fmt.Errorf("session is nil")
	}
	content, err := exporter.Export(sess)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	path := filepath.Join(dir, FileName(sess, exporter.FileExtension()))
	if err := util.AtomicWriteFile(path, content, 0600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// FileName returns "<name>_<id>.<ext>" with characters that are invalid in
// file names replaced.
func FileName(sess *model.Session, ext string) string {
	name := sess.PatientName
	if name == "" {
		name = sess.Title
	}
	name = sanitizeFilename(name)
	if sess.ID != "" {
		name += "_" + sanitizeFilename(sess.ID)
	}
	return name + ext
}

const maxFilenameRunes = 50

func sanitizeFilename(s string) string {
	s = util.FirstRunes(strings.TrimSpace(s), maxFilenameRunes)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "letter"
	}
	return b.String()
}
