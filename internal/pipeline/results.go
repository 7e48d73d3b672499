// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/letterscribe/internal/util"
)

// Case outcome values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// ErrNoResults is returned when no case produced a result.
var ErrNoResults = errors.New("no results for summary")

// Generator produces a completion for a prompt. *ollama.Gateway satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// =============================================================================
// RESULT TYPES
// =============================================================================

// CaseResult is the outcome of generating one letter.
type CaseResult struct {
	RunID     string    `json:"run_id"`
	TestID    string    `json:"test_id"`
	Output    string    `json:"output"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	Runtime   float64   `json:"runtime"` // seconds
}

// RuntimeStats summarizes per-case runtimes in seconds.
type RuntimeStats struct {
	Avg float64 `json:"avg_runtime"`
	Max float64 `json:"max_runtime"`
	Min float64 `json:"min_runtime"`
}

// RunSummary is written to summary.json at the end of a run.
type RunSummary struct {
	RunID           string       `json:"run_id"`
	Timestamp       time.Time    `json:"timestamp"`
	Model           string       `json:"model"`
	GitCommit       string       `json:"git_commit"`
	TotalCases      int          `json:"total_cases"`
	RunSuccess      bool         `json:"run_success"`
	SuccessfulCases int          `json:"successful_cases"`
	FailedCases     int          `json:"failed_cases"`
	RuntimeStats    RuntimeStats `json:"runtime_stats"`
}

// CaseEvaluation is the outcome of grading one generated letter.
type CaseEvaluation struct {
	CaseID     string    `json:"case_id"`
	Status     string    `json:"status"`
	Evaluation string    `json:"evaluation"`
	Metrics    Metrics   `json:"metrics"`
	Error      string    `json:"error,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Runtime    float64   `json:"runtime"` // seconds
}

// EvalSummary is written to eval_summary.json at the end of an evaluation.
type EvalSummary struct {
	EvalID              string             `json:"eval_id"`
	RunID               string             `json:"run_id"`
	Timestamp           time.Time          `json:"timestamp"`
	Model               string             `json:"model"`
	CasesEvaluated      []string           `json:"cases_evaluated"`
	AverageMetrics      Metrics            `json:"average_metrics"`
	CaseMetrics         map[string]Metrics `json:"case_metrics"`
	ImprovementAnalysis string             `json:"improvement_analysis"`
}

// =============================================================================
// AGGREGATES
// =============================================================================

// summarizeRuns computes success counts and runtime statistics.
func summarizeRuns(results []CaseResult) (successful int, stats RuntimeStats) {
	if len(results) == 0 {
		return 0, stats
	}
	var total float64
	stats.Min = results[0].Runtime
	for _, r := range results {
		if r.Status == StatusSuccess {
			successful++
		}
		total += r.Runtime
		if r.Runtime > stats.Max {
			stats.Max = r.Runtime
		}
		if r.Runtime < stats.Min {
			stats.Min = r.Runtime
		}
	}
	stats.Avg = total / float64(len(results))
	return successful, stats
}

// =============================================================================
// OUTPUT FILES
// =============================================================================

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	if err := util.AtomicWriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeText(path, text string) error {
	if err := util.AtomicWriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// gitCommit returns the HEAD commit of the working directory's repository,
// or "unknown".
func gitCommit(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, "git", "rev-parse", "HEAD").Output()
	if err != nil {
		return "unknown"
	}
	commit := strings.TrimSpace(string(out))
	if commit == "" {
		return "unknown"
	}
	return commit
}
