// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline runs letter generation and evaluation over a set of test
// cases.
//
// A Runner renders a prompt file for every case, asks the model for a letter
// and writes one result per case plus a run summary under
// <results_dir>/<run_id>. An Evaluator later grades those letters against
// reference letters written by a clinician, extracts the "**Name:** X / 5"
// ratings from each evaluation and writes averages, an improvement analysis
// and a Markdown report under <eval_dir>/<eval_id>.
//
// Config and case files are JSON or YAML, chosen by file extension.
//
// Requests are sequential. A failed case is recorded with status "error" and
// the run continues.
package pipeline
