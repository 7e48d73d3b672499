// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"fmt"

	"github.com/jeranaias/letterscribe/internal/model"
)

// JSONExporter writes the complete session record. The output decodes back
// into a model.Session.
type JSONExporter struct{}

// Export implements Exporter.
func (e *JSONExporter) Export(sess *model.Session) ([]byte, error) {
	if sess == nil {
		return nil, fmt.Errorf("session is nil")
	}
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension implements Exporter.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}
