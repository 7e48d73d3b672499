// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package conversation sequences letter generation for one session.
//
// The Orchestrator turns the clinician's notes into a referral letter,
// asks the model for clarification questions, folds the answers back into a
// revised letter and applies free-form feedback. It owns the session while it
// is open and hands snapshots to the autosaver.
//
// # States
//
//	Fresh ──notes──▶ LetterProduced ──feedback──▶ Revising
//	                   ▲      │answers                │
//	                   │      ▼                       │
//	                   └──────┴───────────────────────┘
//
// Requests never overlap: every prompt, generate and record step runs under
// the orchestrator's request lock, including the background follow-ups
// (questions, then a title) that start after a letter is produced.
//
// # Usage
//
//	orch := conversation.New(sess, gateway, composer, store.Save, conversation.Options{
//	    PromptFile: cfg.Local.PromptFile,
//	}, logger)
//	defer orch.Close()
//
//	letter, err := orch.Submit(ctx, "R shoulder pain, 3/52, improved with rest")
package conversation
