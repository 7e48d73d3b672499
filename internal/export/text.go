// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"

	"github.com/jeranaias/letterscribe/internal/model"
)

// TextExporter writes the latest letter and nothing else.
type TextExporter struct{}

// Export implements Exporter.
func (e *TextExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	letter := sess.LastLetter()
	if letter == nil {
		return nil, ErrNoLetter
	}
	return []byte(strings.TrimSpace(letter.Content) + "\n"), nil
}

// FileExtension implements Exporter.
func (e *TextExporter) FileExtension() string {
	return ".txt"
}
