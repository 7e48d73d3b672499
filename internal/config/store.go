// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"strings"
	"sync"
)

// Store holds the live configuration and writes changes back to disk.
//
// Store is safe for concurrent use. Writers are last-writer-wins.
type Store struct {
	mu   sync.RWMutex
	cfg  Config
	path string
}

// NewStore wraps cfg. When path is empty, changes are kept in memory only.
func NewStore(cfg *Config, path string) *Store {
	if cfg == nil {
		cfg = Default()
	}
	return &Store{cfg: *cfg, path: path}
}

// OpenStore loads the configuration at path (DefaultPath when empty) and
// returns a Store that persists to the same file.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewStore(cfg, path), nil
}

// Path returns the backing file path ("" for in-memory stores).
func (s *Store) Path() string {
	return s.path
}

// Config returns a copy of the current configuration.
func (s *Store) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Endpoint returns the configured Ollama URL.
func (s *Store) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Local.OllamaURL
}

// Model returns the configured model identifier.
func (s *Store) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Local.OllamaModel
}

// PromptFile returns the name of the main letter template.
func (s *Store) PromptFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Local.PromptFile
}

// SetEndpoint validates and persists a new Ollama URL.
func (s *Store) SetEndpoint(endpoint string) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if err := ValidateEndpoint(endpoint); err != nil {
		return err
	}
	return s.Update(func(c *Config) { c.Local.OllamaURL = endpoint })
}

// SetModel persists a new model identifier.
func (s *Store) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return fmt.Errorf("model must not be empty")
	}
	return s.Update(func(c *Config) { c.Local.OllamaModel = model })
}

// SetPromptFile persists a new main letter template name.
func (s *Store) SetPromptFile(name string) error {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid prompt file name %q", name)
	}
	return s.Update(func(c *Config) { c.Local.PromptFile = name })
}

// Update applies fn to a copy of the configuration, validates the result,
// then swaps it in and saves it. The in-memory value is left unchanged when
// validation fails; a save failure is returned after the swap.
func (s *Store) Update(fn func(*Config)) error {
	s.mu.Lock()
	next := s.cfg
	fn(&next)
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("invalid config: %w", err)
	}
	s.cfg = next
	path := s.path
	s.mu.Unlock()

	if path == "" {
		return nil
	}
	return SaveTOML(&next, path)
}
