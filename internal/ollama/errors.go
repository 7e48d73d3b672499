// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"errors"
	"fmt"
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorKind categorizes gateway errors for handling.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindUnavailable: the server could not be reached.
	KindUnavailable
	// KindUpstream: the server answered with a non-2xx status.
	KindUpstream
	// KindMalformed: the body is empty, not a JSON object, or lacks the
	// expected field.
	KindMalformed
	// KindParse: the body is a JSON object that does not fit the response shape.
	KindParse
)

// String returns the kind name.
func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindUpstream:
		return "upstream"
	case KindMalformed:
		return "malformed"
	case KindParse:
		return "parse"
	default:
		return "unknown"
	}
}

// Sentinel errors matched with errors.Is.
var (
	ErrUpstreamUnavailable = errors.New("model server unavailable")
	ErrUpstreamError       = errors.New("model server returned an error")
	ErrMalformedResponse   = errors.New("malformed response from model server")
	ErrParseError          = errors.New("could not parse model server response")
)

// GatewayError describes a failed gateway call.
type GatewayError struct {
	Kind       ErrorKind
	Op         string // "generate" or "list models"
	StatusCode int    // HTTP status for KindUpstream
	Message    string
	Cause      error
}

func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Message)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *GatewayError) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindUnavailable:
		return ErrUpstreamUnavailable
	case KindUpstream:
		return ErrUpstreamError
	case KindMalformed:
		return ErrMalformedResponse
	case KindParse:
		return ErrParseError
	default:
		return nil
	}
}

// KindOf returns the kind of a gateway error, or KindUnknown.
func KindOf(err error) ErrorKind {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Kind
	}
	return KindUnknown
}

// IsUnavailable checks if an error indicates Ollama is not reachable.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}

// IsUpstream checks if an error is a non-2xx answer from Ollama.
func IsUpstream(err error) bool {
	return errors.Is(err, ErrUpstreamError)
}

// UserMessage returns a short explanation suitable for showing to a clinician.
func UserMessage(err error) string {
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		return err.Error()
	}
	switch gwErr.Kind {
	case KindUnavailable:
		return "Could not reach Ollama. Check that it is running and the endpoint is correct."
	case KindUpstream:
		return "Ollama reported an error: " + gwErr.Message
	case KindMalformed, KindParse:
		return "Ollama returned a response that could not be read."
	default:
		return gwErr.Error()
	}
}
