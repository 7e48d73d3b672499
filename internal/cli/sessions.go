// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/export"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/util"
)

// listTitleRunes bounds titles in the session table.
const listTitleRunes = 48

func newSessionsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage saved sessions",
	}
	cmd.AddCommand(
		newSessionsListCmd(app),
		newSessionsShowCmd(app),
		newSessionsExportCmd(app),
		newSessionsDeleteCmd(app),
		newSessionsCleanupCmd(app),
	)
	return cmd
}

func newSessionsListCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Sessions()
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, summaries)
			}
			if len(summaries) == 0 {
				fmt.Fprintln(out, DimStyle.Render("No saved sessions."))
				fmt.Fprintln(out, DimStyle.Render("Start one with: letterscribe chat"))
				return nil
			}
			fmt.Fprintln(out, renderSessionTable(summaries))
			fmt.Fprintln(out, DimStyle.Render("Use 'letterscribe sessions show <id>' to view a session."))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func renderSessionTable(summaries []model.SessionSummary) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(SeparatorStyle).
		Headers("ID", "TITLE", "SAVED", "MESSAGES").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return SectionStyle.MarginTop(0).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, s := range summaries {
		t.Row(
			s.ID,
			util.TruncateRunes(s.DisplayTitle(), listTitleRunes),
			s.SavedAt.Local().Format("2006-01-02 15:04"),
			strconv.Itoa(s.MessageCount),
		)
	}
	return t.String()
}

func newSessionsShowCmd(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a session and its messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Sessions()
			if err != nil {
				return err
			}
			sess, err := store.Load(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSONOut(out, sess)
			}
			printSession(out, sess)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output JSON")
	return cmd
}

func printSession(out io.Writer, sess *model.Session) {
	summary := sess.Summary()
	fmt.Fprintln(out, TitleStyle.Render(summary.DisplayTitle()))
	fmt.Fprintln(out, RenderField("ID", sess.ID))
	if sess.PatientName != "" {
		fmt.Fprintln(out, RenderField("Patient", sess.PatientName))
	}
	if sess.Model != "" {
		fmt.Fprintln(out, RenderField("Model", sess.Model))
	}
	fmt.Fprintln(out, RenderField("Created", sess.CreatedAt.Local().Format("2006-01-02 15:04")))
	fmt.Fprintln(out, RenderField("Saved", sess.SavedAt.Local().Format("2006-01-02 15:04")))
	fmt.Fprintln(out, RenderField("Messages", strconv.Itoa(len(sess.Messages))))

	for _, msg := range sess.Messages {
		fmt.Fprintln(out, SectionStyle.Render(msg.Role.DisplayName()+messageKind(msg)))
		if msg.IsLetter {
			fmt.Fprintln(out, RenderLetter(msg.Content))
			continue
		}
		fmt.Fprintln(out, WrapText(msg.Content, GetTerminalWidth()))
	}
}

func messageKind(msg *model.Message) string {
	switch {
	case msg.IsLetter:
		return " (letter)"
	case msg.IsQuestions:
		return " (questions)"
	default:
		return ""
	}
}

func newSessionsExportCmd(app *App) *cobra.Command {
	var (
		format  string
		dir     string
		history bool
		stdout  bool
	)
	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Write a session's latest letter to a file",
		Long: `Write a session's latest letter to a file.

Formats: txt (the letter only), md (front matter and the letter, plus the
drafting history with --history) and json (the complete session record).
The file is named after the patient or title and the session ID.`,
		Example: `  letterscribe sessions export 3f2a9c1e
  letterscribe sessions export 3f2a9c1e --format md --history -d ~/letters
  letterscribe sessions export 3f2a9c1e --stdout | pbcopy`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			store, err := app.Sessions()
			if err != nil {
				return err
			}
			sess, err := store.Load(args[0])
			if err != nil {
				return err
			}
			exporter, err := export.New(f, &export.Options{
				IncludeMetadata: true,
				IncludeHistory:  history,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if stdout {
				data, err := exporter.Export(sess)
				if err != nil {
					return err
				}
				_, err = out.Write(data)
				return err
			}
			path, err := export.ToFile(sess, exporter, dir)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, RenderStatus("ok")+" exported to "+path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", string(export.FormatText), "txt, md or json")
	cmd.Flags().StringVarP(&dir, "dir", "d", ".", "output directory")
	cmd.Flags().BoolVar(&history, "history", false, "include every message (md only)")
	cmd.Flags().BoolVar(&stdout, "stdout", false, "write to stdout instead of a file")
	return cmd
}

func newSessionsDeleteCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete saved sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Sessions()
			if err != nil {
				return err
			}
			action := fmt.Sprintf("delete %d session(s)", len(args))
			if err := RequireConfirmation(action, ConfirmationOptions{Yes: yes}); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			missing := 0
			for _, id := range args {
				if store.Delete(id) {
					fmt.Fprintln(out, RenderStatus("ok")+" deleted "+id)
				} else {
					missing++
					fmt.Fprintln(out, RenderStatus("warn")+" not found "+id)
				}
			}
			if missing == len(args) {
				return fmt.Errorf("no sessions deleted")
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newSessionsCleanupCmd(app *App) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete sessions that have neither a title nor a patient name",
		Long: `Delete every session that has neither a title nor a patient name.

Sessions are removed even when they contain messages, so an interrupted
session whose title was never generated is lost. Give it a patient name
first (chat /patient) to keep it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := app.Sessions()
			if err != nil {
				return err
			}
			summaries, err := store.List()
			if err != nil {
				return err
			}
			var anonymous, withMessages int
			for _, s := range summaries {
				if s.IsAnonymous() {
					anonymous++
					if s.MessageCount > 0 {
						withMessages++
					}
				}
			}

			out := cmd.OutOrStdout()
			if anonymous == 0 {
				fmt.Fprintln(out, DimStyle.Render("Nothing to clean up."))
				return nil
			}
			if withMessages > 0 {
				fmt.Fprintln(out, WarningStyle.Render(fmt.Sprintf(
					"%d of them contain messages.", withMessages)))
			}
			action := fmt.Sprintf("delete %d untitled session(s)", anonymous)
			if err := RequireConfirmation(action, ConfirmationOptions{Yes: yes}); err != nil {
				return err
			}

			removed, err := store.Cleanup()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, SuccessStyle.Render(fmt.Sprintf("Removed %d session(s).", removed)))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

// writeJSONOut writes v as indented JSON.
func writeJSONOut(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
