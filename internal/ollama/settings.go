// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"errors"
	"strings"
	"sync"
)

// Settings supplies the endpoint and model for each request.
// config.Store implements it and persists changes to disk.
type Settings interface {
	Endpoint() string
	Model() string
	SetEndpoint(endpoint string) error
	SetModel(model string) error
}

// StaticSettings is an in-memory Settings for batch runs and tests.
type StaticSettings struct {
	mu       sync.RWMutex
	endpoint string
	model    string
}

// NewStaticSettings creates settings holding endpoint and model.
func NewStaticSettings(endpoint, model string) *StaticSettings {
	return &StaticSettings{endpoint: strings.TrimRight(endpoint, "/"), model: model}
}

// Endpoint implements Settings.
func (s *StaticSettings) Endpoint() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endpoint
}

// Model implements Settings.
func (s *StaticSettings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// SetEndpoint implements Settings.
func (s *StaticSettings) SetEndpoint(endpoint string) error {
	endpoint = strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if endpoint == "" {
		return errors.New("endpoint must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endpoint = endpoint
	return nil
}

// SetModel implements Settings.
func (s *StaticSettings) SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.model = model
	return nil
}
