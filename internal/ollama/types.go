// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import "time"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// GenerateRequest is the request body for /api/generate endpoint.
type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// GenerateResponse is the response from /api/generate endpoint.
type GenerateResponse struct {
	Model         string    `json:"model"`
	CreatedAt     time.Time `json:"created_at"`
	Response      string    `json:"response"`
	Done          bool      `json:"done"`
	DoneReason    string    `json:"done_reason,omitempty"`
	TotalDuration int64     `json:"total_duration,omitempty"` // nanoseconds
	EvalCount     int       `json:"eval_count,omitempty"`     // number of tokens generated
}

// ModelInfo contains information about an installed model.
type ModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
}

// ListModelsResponse is the response from /api/tags endpoint.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// OllamaError represents an error body from the Ollama API.
type OllamaError struct {
	Error string `json:"error"`
}
