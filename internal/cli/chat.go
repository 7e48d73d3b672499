// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/config"
	"github.com/jeranaias/letterscribe/internal/conversation"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/ollama"
)

// pasteTerminator ends multi-line input started with /paste.
const pasteTerminator = "."

const chatHelp = `Commands:
  /paste            Enter multi-line notes or feedback, end with a line containing "."
  /answer           Answer the model's clarification questions one by one
  /questions        Ask the model for clarification questions again
  /title            Regenerate the session title
  /patient NAME     Set the patient name shown in the session list
  /letter           Show the current letter
  /save             Save the session now
  /new              Start a new session
  /help             Show this help
  /exit, /quit      Leave (the session is saved first)

Before the first letter, input is treated as clinical notes.
After that, input is treated as feedback on the letter.`

func newChatCmd(app *App) *cobra.Command {
	var (
		sessionID string
		patient   string
	)
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Draft a referral letter interactively",
		Long: `Start an interactive drafting session.

Type or paste the clinical notes to get a first letter. The model then asks
clarification questions, which you can answer with /answer, and any further
input is applied to the letter as feedback. Sessions are saved automatically.`,
		Example: `  letterscribe chat
  letterscribe chat --patient "J. Smith"
  letterscribe chat --session 3f2a9c`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("chat"); err != nil {
				return fmt.Errorf("%w (use 'letterscribe generate' for piped input)", err)
			}
			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			history := newHistory(line)
			defer history.Close()

			repl := &chatREPL{app: app, out: cmd.OutOrStdout(), in: history}
			return repl.start(cmd.Context(), sessionID, patient)
		},
	}
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "resume a saved session")
	cmd.Flags().StringVarP(&patient, "patient", "p", "", "patient name for the session list")
	return cmd
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader is the subset of liner.State the REPL uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// historyLiner loads and saves input history around a liner.State.
type historyLiner struct {
	*liner.State
	path string
}

func newHistory(line *liner.State) *historyLiner {
	h := &historyLiner{State: line}
	if dir, err := config.Dir(); err == nil {
		h.path = filepath.Join(dir, "chat_history")
	}
	if h.path != "" {
		if f, err := os.Open(h.path); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	return h
}

// Close writes the history with owner-only permissions and restores the
// terminal.
func (h *historyLiner) Close() error {
	if h.path != "" {
		if err := os.MkdirAll(filepath.Dir(h.path), 0700); err == nil {
			if f, err := os.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
				_, _ = h.State.WriteHistory(f)
				f.Close()
			}
		}
	}
	return h.State.Close()
}

// =============================================================================
// REPL
// =============================================================================

type chatREPL struct {
	app  *App
	out  io.Writer
	in   lineReader
	orch *conversation.Orchestrator

	// notices are produced on background goroutines and printed before
	// the next prompt.
	mu      sync.Mutex
	notices []string
}

// start opens (or resumes) a session, runs the loop and closes the session.
func (r *chatREPL) start(ctx context.Context, sessionID, patient string) error {
	var sess *model.Session
	if sessionID != "" {
		sessions, err := r.app.Sessions()
		if err != nil {
			return err
		}
		sess, err = sessions.Load(sessionID)
		if err != nil {
			return fmt.Errorf("failed to load session: %w", err)
		}
	}
	if err := r.open(sess, patient); err != nil {
		return err
	}

	stopMonitor := r.startMonitor(ctx)
	defer stopMonitor()

	r.printBanner()
	err := r.loop(ctx)
	r.closeSession()
	return err
}

func (r *chatREPL) open(sess *model.Session, patient string) error {
	orch, err := r.app.NewOrchestrator(sess, conversation.Options{Listener: r.onEvent})
	if err != nil {
		return err
	}
	if patient != "" {
		orch.SetPatientName(patient)
	}
	r.orch = orch

	if sess != nil {
		store, err := r.app.Config()
		if err != nil {
			return err
		}
		if notice := modelChangeNotice(sess.Model, store.Model()); notice != "" {
			r.notify(WarningStyle.Render(notice))
		}
	}
	return nil
}

// modelChangeNotice warns when a resumed session will continue on a
// different model than the one it was drafted with. Empty when they match.
func modelChangeNotice(drafted, current string) string {
	if drafted == "" || drafted == current {
		return ""
	}
	return fmt.Sprintf("This session was drafted with %s; new drafts will use %s. "+
		"Switch back with: letterscribe models use %s", drafted, current, drafted)
}

func (r *chatREPL) closeSession() {
	if r.orch == nil {
		return
	}
	fmt.Fprintln(r.out, DimStyle.Render("Saving session..."))
	if err := r.orch.Close(); err != nil {
		fmt.Fprintln(r.out, ErrorStyle.Render("Save failed: ")+err.Error())
	} else if id := r.orch.SessionID(); id != "" {
		fmt.Fprintln(r.out, DimStyle.Render("Session "+id+" saved."))
	}
	r.flushNotices()
	r.orch = nil
}

// startMonitor polls Ollama in the background and reports transitions.
func (r *chatREPL) startMonitor(ctx context.Context) func() {
	gw, err := r.app.Gateway()
	if err != nil {
		return func() {}
	}
	store, err := r.app.Config()
	if err != nil {
		return func() {}
	}
	logger, err := r.app.Logger()
	if err != nil {
		return func() {}
	}
	cfg := store.Config()

	first := true
	mon := ollama.NewMonitor(gw, cfg.ConnectivityPoll(), func(connected bool) {
		switch {
		case connected && first:
		case connected:
			r.notify(SuccessStyle.Render("Ollama is reachable again."))
		default:
			r.notify(WarningStyle.Render(ollama.UserMessage(&ollama.GatewayError{Kind: ollama.KindUnavailable})))
		}
		first = false
	}, logger)

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		mon.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (r *chatREPL) loop(ctx context.Context) error {
	for {
		r.flushNotices()
		input, err := r.in.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		r.in.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			cont, err := r.command(ctx, input)
			if err != nil {
				r.printError(err)
			}
			if !cont {
				return nil
			}
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			return nil
		}
		r.submit(ctx, input)

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (r *chatREPL) prompt() string {
	if r.orch.State() == conversation.StateFresh {
		return "notes> "
	}
	return "feedback> "
}

// command runs a slash command. It returns false when the REPL should exit.
func (r *chatREPL) command(ctx context.Context, input string) (bool, error) {
	name, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch strings.ToLower(name) {
	case "/exit", "/quit", "/q":
		return false, nil
	case "/help", "/?":
		fmt.Fprintln(r.out, chatHelp)
	case "/paste":
		text, err := r.readBlock()
		if err != nil {
			return true, err
		}
		if text != "" {
			r.submit(ctx, text)
		}
	case "/answer":
		return true, r.answer(ctx)
	case "/questions":
		fmt.Fprintln(r.out, DimStyle.Render("Asking for clarification questions..."))
		msg, err := r.orch.RequestQuestions(ctx)
		if err != nil {
			return true, err
		}
		if msg == nil {
			fmt.Fprintln(r.out, DimStyle.Render("The model has no questions."))
		}
	case "/title":
		title, err := r.orch.GenerateTitle(ctx)
		if err != nil {
			return true, err
		}
		if title == "" {
			fmt.Fprintln(r.out, DimStyle.Render("No title was produced."))
		}
	case "/patient":
		if arg == "" {
			return true, errors.New("usage: /patient NAME")
		}
		r.orch.SetPatientName(arg)
		fmt.Fprintln(r.out, DimStyle.Render("Patient name set."))
	case "/letter":
		letter := r.orch.Session().LastLetter()
		if letter == nil {
			fmt.Fprintln(r.out, DimStyle.Render("No letter yet."))
			break
		}
		fmt.Fprintln(r.out, RenderLetter(letter.Content))
	case "/save":
		result := r.orch.Autosaver().SaveNow()
		if !result.Success {
			return true, result.Err
		}
		fmt.Fprintln(r.out, SuccessStyle.Render("Saved ")+result.ID)
	case "/new":
		r.closeSession()
		if err := r.open(nil, ""); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, DimStyle.Render("New session started."))
	default:
		return true, fmt.Errorf("unknown command %s (try /help)", name)
	}
	return true, nil
}

// submit sends notes or feedback and prints the letter. After a first letter
// it waits for the follow-up questions and title.
func (r *chatREPL) submit(ctx context.Context, text string) {
	fresh := r.orch.State() == conversation.StateFresh
	if fresh {
		fmt.Fprintln(r.out, DimStyle.Render("Generating letter..."))
	} else {
		fmt.Fprintln(r.out, DimStyle.Render("Revising letter..."))
	}

	letter, err := r.orch.Submit(ctx, text)
	if err != nil {
		r.printError(err)
		return
	}
	fmt.Fprintln(r.out, RenderLetter(letter.Content))

	if fresh {
		fmt.Fprintln(r.out, DimStyle.Render("Checking for clarification questions..."))
		r.orch.Wait()
	}
}

// answer walks through the last questions and submits the answers.
func (r *chatREPL) answer(ctx context.Context) error {
	questions := r.orch.Session().LastQuestions()
	if len(questions) == 0 {
		fmt.Fprintln(r.out, DimStyle.Render("There are no questions to answer."))
		return nil
	}

	fmt.Fprintln(r.out, DimStyle.Render("Press Enter to skip a question."))
	answers := make([]string, len(questions))
	for i, q := range questions {
		fmt.Fprintln(r.out, SectionStyle.Render(fmt.Sprintf("%d. %s", i+1, q)))
		a, err := r.in.Prompt(fmt.Sprintf("%d> ", i+1))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return ErrCancelled
			}
			return err
		}
		answers[i] = strings.TrimSpace(a)
	}

	fmt.Fprintln(r.out, DimStyle.Render("Updating letter..."))
	letter, err := r.orch.SubmitAnswers(ctx, answers)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, RenderLetter(letter.Content))
	return nil
}

// readBlock reads lines until the terminator.
func (r *chatREPL) readBlock() (string, error) {
	fmt.Fprintln(r.out, DimStyle.Render(`Paste text, then a line containing "." to finish.`))
	var lines []string
	for {
		line, err := r.in.Prompt("... ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, liner.ErrPromptAborted) {
				return "", ErrCancelled
			}
			return "", err
		}
		if strings.TrimSpace(line) == pasteTerminator {
			break
		}
		lines = append(lines, line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), nil
}

// =============================================================================
// EVENTS
// =============================================================================

func (r *chatREPL) onEvent(ev conversation.Event) {
	switch ev.Type {
	case conversation.EventMessage:
		if ev.Message != nil && ev.Message.IsQuestions {
			r.notify(formatQuestions(ev.Message.Questions))
		}
	case conversation.EventTitle:
		r.notify(RenderField("Title", ev.Title))
	case conversation.EventError:
		r.notify(WarningStyle.Render("Autosave failed: ") + ev.Err.Error())
	}
}

func (r *chatREPL) notify(s string) {
	r.mu.Lock()
	r.notices = append(r.notices, s)
	r.mu.Unlock()
}

func (r *chatREPL) flushNotices() {
	r.mu.Lock()
	pending := r.notices
	r.notices = nil
	r.mu.Unlock()
	for _, n := range pending {
		fmt.Fprintln(r.out, n)
	}
}

func formatQuestions(questions []string) string {
	var sb strings.Builder
	sb.WriteString(SectionStyle.Render("Clarification questions"))
	sb.WriteString("\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, q)
	}
	sb.WriteString(DimStyle.Render("Answer them with /answer, or type feedback."))
	return sb.String()
}

// =============================================================================
// OUTPUT
// =============================================================================

func (r *chatREPL) printBanner() {
	fmt.Fprintln(r.out, TitleStyle.Render("letterscribe"))
	sess := r.orch.Session()
	if sess.ID != "" {
		fmt.Fprintln(r.out, RenderField("Session", sess.Summary().DisplayTitle()))
		if letter := sess.LastLetter(); letter != nil {
			fmt.Fprintln(r.out, RenderLetter(letter.Content))
		}
	}
	if store, err := r.app.Config(); err == nil {
		fmt.Fprintln(r.out, RenderField("Model", store.Model()))
	}
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands."))
}

func (r *chatREPL) printError(err error) {
	var msg string
	switch {
	case errors.Is(err, conversation.ErrEmptyInput):
		msg = "Nothing to send."
	case errors.Is(err, ErrCancelled):
		msg = "Cancelled."
	default:
		msg = err.Error()
	}
	fmt.Fprintln(r.out, ErrorStyle.Render("[Error] ")+msg)
}
