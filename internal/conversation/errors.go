// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyInput is returned for blank notes, feedback or answers.
	ErrEmptyInput = errors.New("input is empty")

	// ErrNoLetter is returned when an operation needs a letter and none exists.
	ErrNoLetter = errors.New("no letter has been produced yet")

	// ErrLetterExists is returned by GenerateLetter outside the Fresh state.
	ErrLetterExists = errors.New("session already has a letter")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("conversation is closed")
)

// GenerationError reports a failed model call on a letter-producing path.
// Message is suitable for display; Err keeps the gateway error for errors.Is.
type GenerationError struct {
	Op      string
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// IsGenerationError checks if err came from the model call itself.
func IsGenerationError(err error) bool {
	var genErr *GenerationError
	return errors.As(err, &genErr)
}
