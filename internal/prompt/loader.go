// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Extensions tried by DirLoader, in order.
var Extensions = []string{".txt", ".md", ".toml"}

// Loader fetches template text by name. Implementations return an error
// wrapping ErrTemplateNotFound when they have no such template.
type Loader interface {
	Load(name string) (string, error)
}

// =============================================================================
// DIRECTORY LOADER
// =============================================================================

// DirLoader reads <dir>/<name>.txt, .md or .toml.
type DirLoader struct {
	Dir string
}

// tomlTemplate is the shape of a .toml prompt file.
type tomlTemplate struct {
	Template    string `toml:"template"`
	Description string `toml:"description"`
}

// Load implements Loader.
func (l DirLoader) Load(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	if l.Dir == "" {
		return "", ErrTemplateNotFound
	}

	for _, ext := range Extensions {
		path := filepath.Join(l.Dir, name+ext)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", path, err)
		}

		if ext != ".toml" {
			return string(data), nil
		}
		var t tomlTemplate
		if err := toml.Unmarshal(data, &t); err != nil {
			return "", fmt.Errorf("failed to decode %s: %w", path, err)
		}
		if t.Template == "" {
			return "", fmt.Errorf("%s: missing 'template' key", path)
		}
		return t.Template, nil
	}
	return "", ErrTemplateNotFound
}

// =============================================================================
// EMBEDDED LOADER
// =============================================================================

//go:embed templates/*.txt
var builtin embed.FS

// EmbeddedLoader serves the built-in templates.
type EmbeddedLoader struct{}

// Load implements Loader.
func (EmbeddedLoader) Load(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}
	data, err := builtin.ReadFile("templates/" + name + ".txt")
	if err != nil {
		return "", ErrTemplateNotFound
	}
	return string(data), nil
}

// BuiltinNames lists the names of the built-in templates.
func BuiltinNames() []string {
	entries, err := builtin.ReadDir("templates")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	return names
}

// =============================================================================
// CHAIN LOADER
// =============================================================================

// ChainLoader tries each loader in order. The first hit wins; a loader
// error other than not-found stops the chain.
type ChainLoader []Loader

// Load implements Loader.
func (c ChainLoader) Load(name string) (string, error) {
	for _, l := range c {
		text, err := l.Load(name)
		if err == nil {
			return text, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", err
		}
	}
	return "", ErrTemplateNotFound
}

// DefaultLoader returns a loader that prefers dir and falls back to the
// built-in templates.
func DefaultLoader(dir string) Loader {
	return ChainLoader{DirLoader{Dir: dir}, EmbeddedLoader{}}
}

func validName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("invalid template name %q: %w", name, ErrTemplateNotFound)
	}
	return nil
}
