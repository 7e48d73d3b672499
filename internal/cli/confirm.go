// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
)

// ErrCancelled is returned when the user declines a confirmation.
var ErrCancelled = errors.New("operation cancelled")

// =============================================================================
// CONFIRMATION
// =============================================================================

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// Yes is set by --yes and skips the prompt.
	Yes bool
}

// askConfirm is swapped out in tests.
var askConfirm = func(message string) (bool, error) {
	var ok bool
	prompt := &survey.Confirm{
		Message: message,
		Default: false,
	}
	if err := survey.AskOne(prompt, &ok); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return false, nil
		}
		return false, err
	}
	return ok, nil
}

// isInteractive is swapped out in tests.
var isInteractive = IsTTY

// RequireConfirmation asks before a destructive action.
//
//  1. --yes proceeds without prompting
//  2. without a terminal, --yes is required
//  3. otherwise the user is asked, defaulting to no
func RequireConfirmation(action string, opts ConfirmationOptions) error {
	if opts.Yes {
		return nil
	}
	if !isInteractive() {
		return fmt.Errorf("%s requires confirmation: stdin is not a terminal, pass --yes", action)
	}
	ok, err := askConfirm(fmt.Sprintf("%s?", capitalize(action)))
	if err != nil {
		return fmt.Errorf("confirmation failed: %w", err)
	}
	if !ok {
		return ErrCancelled
	}
	return nil
}

// =============================================================================
// SELECTION
// =============================================================================

// askSelect is swapped out in tests.
var askSelect = func(message string, options []string, def string) (string, error) {
	var choice string
	prompt := &survey.Select{
		Message: message,
		Options: options,
	}
	if def != "" {
		prompt.Default = def
	}
	if err := survey.AskOne(prompt, &choice, survey.WithValidator(survey.Required)); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrCancelled
		}
		return "", err
	}
	return choice, nil
}

// askInput reads one line of free text with survey.
var askInput = func(message, help string) (string, error) {
	var value string
	prompt := &survey.Input{Message: message, Help: help}
	if err := survey.AskOne(prompt, &value); err != nil {
		if errors.Is(err, terminal.InterruptErr) {
			return "", ErrCancelled
		}
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
