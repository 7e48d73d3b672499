// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"testing"
)

func TestNewSession(t *testing.T) {
	s := NewSession("llama3.1:8b")

	if !s.IsInitialMessage {
		t.Error("new session should expect initial message")
	}
	if s.LastLetterIndex != NoLetter {
		t.Errorf("LastLetterIndex = %d, want %d", s.LastLetterIndex, NoLetter)
	}
	if s.LastLetter() != nil {
		t.Error("LastLetter() should be nil for new session")
	}
	if s.ID != "" {
		t.Errorf("ID = %q, want empty until saved", s.ID)
	}
}

func TestAddMessageTracksLetters(t *testing.T) {
	s := NewSession("m")

	s.AddMessage(NewUserMessage("R shoulder pain, 3/52"))
	if s.IsInitialMessage {
		t.Error("IsInitialMessage should be false after first message")
	}

	s.AddMessage(NewLetterMessage("Dear Dr Smith, ..."))
	if s.LastLetterIndex != 1 {
		t.Errorf("LastLetterIndex = %d, want 1", s.LastLetterIndex)
	}

	s.AddMessage(NewQuestionsMessage("1. Which hand?", []string{"Which hand?"}))
	if s.LastLetterIndex != 1 {
		t.Errorf("LastLetterIndex = %d after questions, want 1", s.LastLetterIndex)
	}
	if got := s.LastQuestions(); len(got) != 1 || got[0] != "Which hand?" {
		t.Errorf("LastQuestions() = %v, want [Which hand?]", got)
	}

	s.AddMessage(NewUserMessage("Right hand"))
	s.AddMessage(NewLetterMessage("Dear Dr Smith, revised"))
	if s.LastLetterIndex != 4 {
		t.Errorf("LastLetterIndex = %d, want 4", s.LastLetterIndex)
	}
	if got := s.LastLetter().Content; got != "Dear Dr Smith, revised" {
		t.Errorf("LastLetter().Content = %q", got)
	}
	if s.LastQuestions() != nil {
		t.Error("LastQuestions() should be nil once a newer letter exists")
	}
	if got := s.InitialNotes(); got != "R shoulder pain, 3/52" {
		t.Errorf("InitialNotes() = %q", got)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := NewSession("m")
	s.AddMessage(NewUserMessage("notes"))
	s.AddMessage(NewQuestionsMessage("q", []string{"a", "b"}))

	c := s.Clone()
	c.Messages[0].Content = "changed"
	c.Messages[1].Questions[0] = "changed"
	c.AddMessage(NewUserMessage("extra"))

	if s.Messages[0].Content != "notes" {
		t.Error("Clone shares message pointers")
	}
	if s.Messages[1].Questions[0] != "a" {
		t.Error("Clone shares question slices")
	}
	if len(s.Messages) != 2 {
		t.Errorf("len(Messages) = %d, want 2", len(s.Messages))
	}
}

func TestNormalize(t *testing.T) {
	s := &Session{
		Messages: []*Message{
			NewUserMessage("notes"),
			NewLetterMessage("letter"),
			NewUserMessage("feedback"),
		},
		LastLetterIndex:  7,
		IsInitialMessage: true,
	}
	s.Normalize()

	if s.LastLetterIndex != 1 {
		t.Errorf("LastLetterIndex = %d, want 1", s.LastLetterIndex)
	}
	if s.IsInitialMessage {
		t.Error("IsInitialMessage should be false when messages exist")
	}

	empty := &Session{LastLetterIndex: 0}
	empty.Normalize()
	if empty.Messages == nil || empty.LastLetterIndex != NoLetter {
		t.Errorf("Normalize() on empty = %+v", empty)
	}
}

func TestSummaryDisplayTitle(t *testing.T) {
	tests := []struct {
		name    string
		summary SessionSummary
		want    string
		anon    bool
	}{
		{"title wins", SessionSummary{Title: "Shoulder referral", PatientName: "Jane"}, "Shoulder referral", false},
		{"patient fallback", SessionSummary{PatientName: "Jane"}, "Jane", false},
		{"placeholder", SessionSummary{}, "Untitled session", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.summary.DisplayTitle(); got != tt.want {
				t.Errorf("DisplayTitle() = %q, want %q", got, tt.want)
			}
			if got := tt.summary.IsAnonymous(); got != tt.anon {
				t.Errorf("IsAnonymous() = %v, want %v", got, tt.anon)
			}
		})
	}
}

func TestMessagePreview(t *testing.T) {
	m := NewUserMessage("héllo wörld")
	if got := m.Preview(8); got != "héllo..." {
		t.Errorf("Preview(8) = %q, want %q", got, "héllo...")
	}
	if got := m.Preview(50); got != "héllo wörld" {
		t.Errorf("Preview(50) = %q", got)
	}
}
