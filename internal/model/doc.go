// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for letter-drafting sessions
// and their messages.
//
// A Session is the unit of persistence: the clinician's initial notes, every
// generated letter, clarification questions and answers, and revision
// feedback, in conversation order.
package model
