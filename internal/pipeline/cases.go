// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/jeranaias/letterscribe/internal/prompt"
)

// Case is one test case: clinical notes and, for evaluation, the reference
// letter a clinician wrote from them.
type Case struct {
	ID        string `json:"id" yaml:"id"`
	Notes     string `json:"notes" yaml:"notes"`
	Reference string `json:"reference,omitempty" yaml:"reference"`
}

// caseIDRegex limits IDs to names that are safe as file name prefixes.
var caseIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validCaseID reports whether id can name output files.
func validCaseID(id string) bool {
	return caseIDRegex.MatchString(id) && len(id) <= 128
}

// DataInfo describes the loaded case file.
type DataInfo struct {
	DataFile string   `json:"data_file"`
	NumCases int      `json:"num_cases"`
	CaseIDs  []string `json:"case_ids"`
}

// LoadCases reads a list of cases. A file holding a single case object is
// accepted as a one-element list.
func LoadCases(path string) ([]Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	if isYAML(path) {
		var node yaml.Node
		if err := yaml.Unmarshal(data, &node); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		if len(node.Content) == 0 {
			return nil, nil
		}
		root := node.Content[0]
		if root.Kind == yaml.SequenceNode {
			var cases []Case
			if err := root.Decode(&cases); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
			return cases, nil
		}
		var c Case
		if err := root.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return []Case{c}, nil
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var cases []Case
		if err := json.Unmarshal(trimmed, &cases); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return cases, nil
	}
	var c Case
	if err := json.Unmarshal(trimmed, &c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return []Case{c}, nil
}

// newDataInfo lists the IDs of cases that have one.
func newDataInfo(path string, cases []Case) DataInfo {
	info := DataInfo{DataFile: path, NumCases: len(cases), CaseIDs: make([]string, 0, len(cases))}
	for _, c := range cases {
		if c.ID != "" {
			info.CaseIDs = append(info.CaseIDs, c.ID)
		}
	}
	return info
}

// loadPromptText reads a prompt file. A name that is not an existing file
// but matches a built-in template resolves to that template.
func loadPromptText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		return string(data), nil
	}
	if errors.Is(err, os.ErrNotExist) {
		if text, berr := (prompt.EmbeddedLoader{}).Load(path); berr == nil {
			return text, nil
		}
	}
	return "", fmt.Errorf("failed to read prompt file: %w", err)
}
