// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// NoLetter is the LastLetterIndex of a session that has no letter yet.
const NoLetter = -1

// =============================================================================
// SESSION TYPE
// =============================================================================

// Session holds one letter-drafting conversation.
type Session struct {
	// Identity
	ID          string `json:"id"`
	Title       string `json:"title,omitempty"`
	PatientName string `json:"patient_name,omitempty"`

	// Model selected when the session was created
	Model string `json:"model,omitempty"`

	// Messages in conversation order; never reordered
	Messages []*Message `json:"messages"`

	// LastLetterIndex points into Messages at the most recent letter,
	// or NoLetter.
	LastLetterIndex int `json:"last_letter_index"`

	// IsInitialMessage is true until the first message is recorded.
	IsInitialMessage bool `json:"is_initial_message"`

	CreatedAt time.Time `json:"created_at"`
	SavedAt   time.Time `json:"saved_at"`
}

// NewSession creates an empty session. The ID is assigned on first save.
func NewSession(model string) *Session {
	return &Session{
		Model:            model,
		Messages:         make([]*Message, 0),
		LastLetterIndex:  NoLetter,
		IsInitialMessage: true,
		CreatedAt:        time.Now(),
	}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// AddMessage appends msg, clears IsInitialMessage and tracks letters.
func (s *Session) AddMessage(msg *Message) {
	s.Messages = append(s.Messages, msg)
	s.IsInitialMessage = false
	if msg.IsLetter {
		s.LastLetterIndex = len(s.Messages) - 1
	}
}

// InitialNotes returns the content of the first user message.
func (s *Session) InitialNotes() string {
	for _, msg := range s.Messages {
		if msg.Role == RoleUser {
			return msg.Content
		}
	}
	return ""
}

// LastLetter returns the most recent letter message, or nil.
func (s *Session) LastLetter() *Message {
	if s.LastLetterIndex < 0 || s.LastLetterIndex >= len(s.Messages) {
		return nil
	}
	return s.Messages[s.LastLetterIndex]
}

// LastQuestions returns the questions of the most recent questions message
// recorded after the last letter, or nil.
func (s *Session) LastQuestions() []string {
	for i := len(s.Messages) - 1; i >= 0 && i > s.LastLetterIndex; i-- {
		if s.Messages[i].IsQuestions {
			return s.Messages[i].Questions
		}
	}
	return nil
}

// HasLetter reports whether at least one letter has been produced.
func (s *Session) HasLetter() bool {
	return s.LastLetter() != nil
}

// MessageCount returns the number of messages.
func (s *Session) MessageCount() int {
	return len(s.Messages)
}

// Normalize repairs fields of a session decoded from older or hand-edited
// records: nil message slices and letter indexes that no longer point at a
// letter.
func (s *Session) Normalize() {
	if s.Messages == nil {
		s.Messages = make([]*Message, 0)
	}
	if len(s.Messages) > 0 {
		s.IsInitialMessage = false
	}
	if idx := s.LastLetterIndex; idx < 0 || idx >= len(s.Messages) || !s.Messages[idx].IsLetter {
		s.LastLetterIndex = NoLetter
		for i := len(s.Messages) - 1; i >= 0; i-- {
			if s.Messages[i].IsLetter {
				s.LastLetterIndex = i
				break
			}
		}
	}
}

// Clone returns a deep copy suitable for persisting off the caller's goroutine.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = make([]*Message, len(s.Messages))
	for i, msg := range s.Messages {
		c.Messages[i] = msg.Clone()
	}
	return &c
}

// =============================================================================
// SUMMARY
// =============================================================================

// SessionSummary is the listing view of a session.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	PatientName  string    `json:"patient_name,omitempty"`
	SavedAt      time.Time `json:"saved_at"`
	MessageCount int       `json:"message_count"`
}

// Summary returns the listing view of the session.
func (s *Session) Summary() SessionSummary {
	return SessionSummary{
		ID:           s.ID,
		Title:        s.Title,
		PatientName:  s.PatientName,
		SavedAt:      s.SavedAt,
		MessageCount: len(s.Messages),
	}
}

// DisplayTitle returns the title, falling back to the patient name and then
// a placeholder.
func (ss SessionSummary) DisplayTitle() string {
	switch {
	case ss.Title != "":
		return ss.Title
	case ss.PatientName != "":
		return ss.PatientName
	default:
		return "Untitled session"
	}
}

// IsAnonymous reports whether the session has neither title nor patient name.
func (ss SessionSummary) IsAnonymous() bool {
	return ss.Title == "" && ss.PatientName == ""
}
