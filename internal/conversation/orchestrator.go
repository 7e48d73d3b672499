// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/ollama"
	"github.com/jeranaias/letterscribe/internal/prompt"
	"github.com/jeranaias/letterscribe/internal/session"
	"github.com/jeranaias/letterscribe/internal/storage"
	"github.com/jeranaias/letterscribe/internal/util"
)

// titleInputRunes bounds the notes and letter text fed to the title prompt.
const titleInputRunes = 500

// =============================================================================
// STATE
// =============================================================================

// State is the orchestrator's position in the letter workflow.
type State int

const (
	// StateFresh - no letter produced yet; the next input is clinical notes
	StateFresh State = iota

	// StateLetterProduced - waiting for answers or feedback
	StateLetterProduced

	// StateRevising - feedback is being applied
	StateRevising
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateFresh:
		return "Fresh"
	case StateLetterProduced:
		return "LetterProduced"
	case StateRevising:
		return "Revising"
	default:
		return "Unknown"
	}
}

// =============================================================================
// EVENTS
// =============================================================================

// EventType identifies what an Event carries.
type EventType int

const (
	// EventMessage - a message was appended to the session
	EventMessage EventType = iota

	// EventTitle - the session title was set
	EventTitle

	// EventSaved - the session was written to the store
	EventSaved

	// EventError - a background step or save failed
	EventError
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventMessage:
		return "message"
	case EventTitle:
		return "title"
	case EventSaved:
		return "saved"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is delivered to the Listener. Only the field matching Type is set.
type Event struct {
	Type      EventType
	SessionID string
	Message   *model.Message
	Title     string
	Err       error
}

// Listener receives orchestrator events. It is called synchronously from the
// goroutine that produced the event and must not call back into the
// Orchestrator's request methods.
type Listener func(Event)

// =============================================================================
// COLLABORATORS
// =============================================================================

// Generator produces a completion for a prompt. *ollama.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Renderer renders a named template. *prompt.Composer satisfies it.
type Renderer interface {
	RenderTemplate(name string, subs map[string]string) (string, error)
}

// Options configures an Orchestrator.
type Options struct {
	// PromptFile names the main letter template. Empty means prompt.NameLetter.
	PromptFile string

	// AutosaveDelay is the debounce window. Zero means session.DefaultDelay.
	AutosaveDelay time.Duration

	// TitleMaxWidth is the title column budget. Zero means DefaultTitleWidth.
	TitleMaxWidth int

	// DisableFollowUps skips the background questions and title requests.
	DisableFollowUps bool

	Listener Listener
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator drives one session through the letter workflow.
type Orchestrator struct {
	// reqMu is held across every prompt, generate and record step
	reqMu sync.Mutex

	// mu guards session, state and closed
	mu      sync.Mutex
	session *model.Session
	state   State
	closed  bool

	gen     Generator
	prompts Renderer
	saver   *session.Autosaver
	opts    Options

	// followUps tracks background question/title requests
	followUps sync.WaitGroup

	logger *zap.Logger
}

// New creates an orchestrator for sess. A nil sess starts a fresh session.
// The state of a resumed session is derived from its letter index.
func New(sess *model.Session, gen Generator, prompts Renderer, save session.SaveFunc, opts Options, logger *zap.Logger) *Orchestrator {
	if sess == nil {
		sess = model.NewSession("")
	}
	sess.Normalize()
	if opts.PromptFile == "" {
		opts.PromptFile = prompt.NameLetter
	}
	if opts.TitleMaxWidth <= 0 {
		opts.TitleMaxWidth = DefaultTitleWidth
	}

	o := &Orchestrator{
		session: sess,
		state:   stateOf(sess),
		gen:     gen,
		prompts: prompts,
		opts:    opts,
		logger:  logging.OrNop(logger).Named(logging.ComponentConversation),
	}
	o.saver = session.NewAutosaver(o.snapshot, save, session.Options{
		Delay:   opts.AutosaveDelay,
		OnSaved: o.onSaved,
		OnError: o.onSaveError,
	}, logger)
	return o
}

func stateOf(sess *model.Session) State {
	if sess.LastLetterIndex < 0 {
		return StateFresh
	}
	return StateLetterProduced
}

// State returns the current workflow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Session returns a snapshot of the session.
func (o *Orchestrator) Session() *model.Session {
	return o.snapshot()
}

// SessionID returns the session ID, empty until the first save.
func (o *Orchestrator) SessionID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.ID
}

// Autosaver exposes the session's autosave scheduler.
func (o *Orchestrator) Autosaver() *session.Autosaver {
	return o.saver
}

// SetPatientName records the patient name and schedules a save.
func (o *Orchestrator) SetPatientName(name string) {
	o.mu.Lock()
	o.session.PatientName = strings.TrimSpace(name)
	o.mu.Unlock()
	o.saver.Schedule()
}

// =============================================================================
// REQUESTS
// =============================================================================

// Submit routes user text by state: notes in Fresh, feedback otherwise.
func (o *Orchestrator) Submit(ctx context.Context, text string) (*model.Message, error) {
	if o.State() == StateFresh {
		return o.GenerateLetter(ctx, text)
	}
	return o.Revise(ctx, text)
}

// GenerateLetter renders the main prompt with notes, records the notes and the
// letter, and starts the background follow-ups.
func (o *Orchestrator) GenerateLetter(ctx context.Context, notes string) (*model.Message, error) {
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, ErrEmptyInput
	}

	o.reqMu.Lock()
	if err := o.checkOpen(); err != nil {
		o.reqMu.Unlock()
		return nil, err
	}
	if o.State() != StateFresh {
		o.reqMu.Unlock()
		return nil, ErrLetterExists
	}

	text, err := o.prompts.RenderTemplate(o.opts.PromptFile, map[string]string{"notes": notes})
	if err != nil {
		o.reqMu.Unlock()
		return nil, fmt.Errorf("failed to build letter prompt: %w", err)
	}

	reply, err := o.generate(ctx, "letter", text)
	if err != nil {
		o.reqMu.Unlock()
		return nil, err
	}

	letter := model.NewLetterMessage(strings.TrimSpace(reply))
	o.record(StateLetterProduced, model.NewUserMessage(notes), letter)
	o.reqMu.Unlock()

	o.logger.Info("letter generated",
		zap.String("session", o.SessionID()),
		zap.Int("chars", len(letter.Content)))

	if !o.opts.DisableFollowUps {
		o.startFollowUps(context.WithoutCancel(ctx))
	}
	return letter.Clone(), nil
}

// RequestQuestions asks the model for clarification questions about the last
// letter. A reply with no visible text records nothing and returns nil.
func (o *Orchestrator) RequestQuestions(ctx context.Context) (*model.Message, error) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	return o.requestQuestionsLocked(ctx)
}

func (o *Orchestrator) requestQuestionsLocked(ctx context.Context) (*model.Message, error) {
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	notes, letter, err := o.notesAndLetter()
	if err != nil {
		return nil, err
	}

	text, err := o.prompts.RenderTemplate(prompt.NameQuestions, map[string]string{
		"notes":  notes,
		"letter": letter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build questions prompt: %w", err)
	}

	reply, err := o.generate(ctx, "questions", text)
	if err != nil {
		return nil, err
	}

	visible, questions := ExtractQuestions(reply)
	if len(questions) == 0 {
		o.logger.Debug("model returned no questions", zap.String("session", o.SessionID()))
		return nil, nil
	}

	msg := model.NewQuestionsMessage(visible, questions)
	o.record(StateLetterProduced, msg)
	return msg.Clone(), nil
}

// SubmitAnswers folds clarification answers into a new letter. answers[i]
// answers question i+1; blank answers are skipped but keep their number.
func (o *Orchestrator) SubmitAnswers(ctx context.Context, answers []string) (*model.Message, error) {
	joined := formatAnswers(answers)
	if joined == "" {
		return nil, ErrEmptyInput
	}

	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	notes, _, err := o.notesAndLetter()
	if err != nil {
		return nil, err
	}

	mainPrompt, err := o.prompts.RenderTemplate(o.opts.PromptFile, map[string]string{"notes": notes})
	if err != nil {
		return nil, fmt.Errorf("failed to build letter prompt: %w", err)
	}
	text, err := o.prompts.RenderTemplate(prompt.NameAnswers, map[string]string{
		"prompt":  mainPrompt,
		"answers": joined,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build answers prompt: %w", err)
	}

	reply, err := o.generate(ctx, "answers", text)
	if err != nil {
		return nil, err
	}

	letter := model.NewLetterMessage(strings.TrimSpace(reply))
	o.record(StateLetterProduced, model.NewUserMessage(joined), letter)
	return letter.Clone(), nil
}

// Revise applies free-form feedback to the letter using the full history.
// On failure the state returns to LetterProduced.
func (o *Orchestrator) Revise(ctx context.Context, feedback string) (*model.Message, error) {
	feedback = strings.TrimSpace(feedback)
	if feedback == "" {
		return nil, ErrEmptyInput
	}

	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	if err := o.checkOpen(); err != nil {
		return nil, err
	}
	notes, _, err := o.notesAndLetter()
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.state = StateRevising
	history := formatHistory(o.session.Messages, feedback)
	o.mu.Unlock()

	letter, err := o.revise(ctx, notes, history)
	if err != nil {
		o.mu.Lock()
		o.state = StateLetterProduced
		o.mu.Unlock()
		return nil, err
	}

	o.record(StateLetterProduced, model.NewUserMessage(feedback), letter)
	return letter.Clone(), nil
}

func (o *Orchestrator) revise(ctx context.Context, notes, history string) (*model.Message, error) {
	mainPrompt, err := o.prompts.RenderTemplate(o.opts.PromptFile, map[string]string{"notes": notes})
	if err != nil {
		return nil, fmt.Errorf("failed to build letter prompt: %w", err)
	}
	text, err := o.prompts.RenderTemplate(prompt.NameConversation, map[string]string{
		"prompt":  mainPrompt,
		"history": history,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build conversation prompt: %w", err)
	}

	reply, err := o.generate(ctx, "revision", text)
	if err != nil {
		return nil, err
	}
	return model.NewLetterMessage(strings.TrimSpace(reply)), nil
}

// GenerateTitle asks the model for a short title and saves immediately.
// An empty cleaned title leaves the session untitled.
func (o *Orchestrator) GenerateTitle(ctx context.Context) (string, error) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()
	return o.generateTitleLocked(ctx)
}

func (o *Orchestrator) generateTitleLocked(ctx context.Context) (string, error) {
	if err := o.checkOpen(); err != nil {
		return "", err
	}
	notes, letter, err := o.notesAndLetter()
	if err != nil {
		return "", err
	}

	text, err := o.prompts.RenderTemplate(prompt.NameTitle, map[string]string{
		"notes":  util.FirstRunes(notes, titleInputRunes),
		"letter": util.FirstRunes(letter, titleInputRunes),
	})
	if err != nil {
		return "", fmt.Errorf("failed to build title prompt: %w", err)
	}

	reply, err := o.generate(ctx, "title", text)
	if err != nil {
		return "", err
	}

	title := CleanTitle(reply, o.opts.TitleMaxWidth)
	if title == "" {
		return "", nil
	}

	o.mu.Lock()
	o.session.Title = title
	id := o.session.ID
	o.mu.Unlock()

	o.emit(Event{Type: EventTitle, SessionID: id, Title: title})
	o.saver.SaveNow()
	return title, nil
}

// =============================================================================
// FOLLOW-UPS
// =============================================================================

func (o *Orchestrator) startFollowUps(ctx context.Context) {
	o.followUps.Add(1)
	go func() {
		defer o.followUps.Done()
		o.runFollowUps(ctx)
	}()
}

// runFollowUps requests questions, then a title when the session has none.
// Failures are logged and swallowed.
func (o *Orchestrator) runFollowUps(ctx context.Context) {
	o.reqMu.Lock()
	defer o.reqMu.Unlock()

	if _, err := o.requestQuestionsLocked(ctx); err != nil {
		o.logger.Warn("clarification questions failed",
			zap.String("session", o.SessionID()),
			zap.Error(err))
	}

	o.mu.Lock()
	needTitle := o.session.Title == "" && !o.closed
	o.mu.Unlock()
	if !needTitle {
		return
	}

	if _, err := o.generateTitleLocked(ctx); err != nil {
		o.logger.Warn("title generation failed",
			zap.String("session", o.SessionID()),
			zap.Error(err))
	}
}

// Wait blocks until background follow-ups finish.
func (o *Orchestrator) Wait() {
	o.followUps.Wait()
}

// Close waits for follow-ups, writes pending changes and stops autosaving.
func (o *Orchestrator) Close() error {
	o.followUps.Wait()

	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()

	result, attempted := o.saver.Flush()
	o.saver.Stop()
	if attempted && !result.Success {
		return result.Err
	}
	return nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (o *Orchestrator) checkOpen() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return nil
}

func (o *Orchestrator) notesAndLetter() (string, string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	letter := o.session.LastLetter()
	if letter == nil {
		return "", "", ErrNoLetter
	}
	return o.session.InitialNotes(), letter.Content, nil
}

func (o *Orchestrator) generate(ctx context.Context, op, text string) (string, error) {
	start := time.Now()
	reply, err := o.gen.Generate(ctx, text)
	if err != nil {
		o.logger.Error("generation failed",
			zap.String("op", op),
			zap.String("session", o.SessionID()),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", &GenerationError{Op: op, Message: ollama.UserMessage(err), Err: err}
	}
	o.logger.Debug("generation complete",
		zap.String("op", op),
		zap.Duration("elapsed", time.Since(start)))
	return reply, nil
}

// record appends msgs, moves to state, schedules a save and emits the messages.
func (o *Orchestrator) record(state State, msgs ...*model.Message) {
	o.mu.Lock()
	for _, msg := range msgs {
		o.session.AddMessage(msg)
	}
	o.state = state
	id := o.session.ID
	o.mu.Unlock()

	o.saver.Schedule()
	for _, msg := range msgs {
		o.emit(Event{Type: EventMessage, SessionID: id, Message: msg.Clone()})
	}
}

func (o *Orchestrator) snapshot() *model.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session.Clone()
}

// onSaved copies store-assigned fields back onto the live session.
func (o *Orchestrator) onSaved(result storage.SaveResult) {
	o.mu.Lock()
	if o.session.ID == "" {
		o.session.ID = result.ID
	}
	if o.session.CreatedAt.IsZero() {
		o.session.CreatedAt = time.Now()
	}
	o.session.SavedAt = time.Now()
	o.mu.Unlock()

	o.emit(Event{Type: EventSaved, SessionID: result.ID})
}

func (o *Orchestrator) onSaveError(err error) {
	o.emit(Event{Type: EventError, SessionID: o.SessionID(), Err: err})
}

func (o *Orchestrator) emit(ev Event) {
	if o.opts.Listener != nil {
		o.opts.Listener(ev)
	}
}

// formatAnswers numbers answers to match their questions and joins them.
func formatAnswers(answers []string) string {
	var lines []string
	for i, a := range answers {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%d. %s", i+1, a))
	}
	return strings.Join(lines, "\n")
}

// formatHistory renders every message as "Role: content" and appends the new
// feedback as the final user turn.
func formatHistory(msgs []*model.Message, feedback string) string {
	var sb strings.Builder
	for _, msg := range msgs {
		sb.WriteString(msg.Role.DisplayName())
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
		sb.WriteString("\n\n")
	}
	sb.WriteString(model.RoleUser.DisplayName())
	sb.WriteString(": ")
	sb.WriteString(feedback)
	return sb.String()
}
