// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import "fmt"

// =============================================================================
// ERRORS
// =============================================================================

// Sentinel errors. Use errors.Is to check for them.
var (
	// ErrSessionNotFound is returned when no record exists for an ID.
	ErrSessionNotFound = &StoreError{Message: "session not found"}

	// ErrPersistence wraps any failure to read or write a session record.
	ErrPersistence = &StoreError{Message: "session persistence failed"}
)

// StoreError represents a storage error.
// It can be compared using errors.Is against the sentinels above.
type StoreError struct {
	Message string
	ID      string
	Cause   error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.ID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing storage errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &StoreError{Message: ErrSessionNotFound.Message, ID: id}
}

func persistenceErr(id, op string, cause error) error {
	return &StoreError{
		Message: ErrPersistence.Message,
		ID:      id,
		Cause:   fmt.Errorf("%s: %w", op, cause),
	}
}
