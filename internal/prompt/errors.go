// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"errors"
	"fmt"
)

// ErrTemplateNotFound is returned when no loader can supply a template.
var ErrTemplateNotFound = errors.New("prompt template not found")

// TemplateError describes a failure to obtain a named template.
type TemplateError struct {
	Name string
	Err  error
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("prompt template %q: %v", e.Name, e.Err)
}

func (e *TemplateError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err means a template does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}
