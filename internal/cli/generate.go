// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/conversation"
	"github.com/jeranaias/letterscribe/internal/util"
)

func newGenerateCmd(app *App) *cobra.Command {
	var (
		output    string
		patient   string
		questions bool
	)
	cmd := &cobra.Command{
		Use:   "generate [notes-file]",
		Short: "Generate a letter from notes in a file or on stdin",
		Long: `Generate a single referral letter and print it.

Notes are read from the file argument, or from stdin when no file is given
or the file is "-". The session is saved like an interactive one. With
--questions the model's clarification questions are printed after the letter.`,
		Example: `  letterscribe generate notes.txt
  cat notes.txt | letterscribe generate -o letter.txt
  letterscribe generate notes.txt --questions --patient "J. Smith"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			notes, err := readNotes(cmd.InOrStdin(), args)
			if err != nil {
				return err
			}

			orch, err := app.NewOrchestrator(nil, conversation.Options{DisableFollowUps: !questions})
			if err != nil {
				return err
			}
			if patient != "" {
				orch.SetPatientName(patient)
			}

			letter, genErr := orch.GenerateLetter(cmd.Context(), notes)
			if genErr == nil && questions {
				orch.Wait()
			}
			closeErr := orch.Close()
			if genErr != nil {
				return genErr
			}

			out := cmd.OutOrStdout()
			if output != "" {
				if err := util.AtomicWriteFile(output, []byte(letter.Content+"\n"), 0600); err != nil {
					return fmt.Errorf("failed to write letter: %w", err)
				}
				fmt.Fprintln(out, SuccessStyle.Render("Letter written to ")+output)
			} else {
				fmt.Fprintln(out, letter.Content)
			}

			if qs := orch.Session().LastQuestions(); questions && len(qs) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, formatQuestions(qs))
			}
			if closeErr != nil {
				return fmt.Errorf("letter generated but the session was not saved: %w", closeErr)
			}
			if id := orch.SessionID(); id != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("Session "+id+" saved."))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the letter to a file")
	cmd.Flags().StringVarP(&patient, "patient", "p", "", "patient name for the session list")
	cmd.Flags().BoolVarP(&questions, "questions", "q", false, "also ask for clarification questions and a title")
	return cmd
}

// readNotes reads notes from the named file or stdin.
func readNotes(stdin io.Reader, args []string) (string, error) {
	var (
		data []byte
		err  error
	)
	if len(args) == 0 || args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return "", fmt.Errorf("failed to read notes: %w", err)
	}
	notes := strings.TrimSpace(string(data))
	if notes == "" {
		return "", fmt.Errorf("no notes given")
	}
	return notes, nil
}
