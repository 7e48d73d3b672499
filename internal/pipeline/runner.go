// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/prompt"
)

// =============================================================================
// RUNNER
// =============================================================================

// Runner generates a letter for every case of a run config.
// Runner is not safe for concurrent use.
type Runner struct {
	cfg    RunConfig
	gen    Generator
	logger *zap.Logger

	// commit resolves the git commit recorded in the summary
	commit func(ctx context.Context) string
}

// NewRunner creates a runner. cfg should already have defaults applied.
func NewRunner(cfg RunConfig, gen Generator, logger *zap.Logger) *Runner {
	return &Runner{
		cfg:    cfg,
		gen:    gen,
		logger: logging.OrNop(logger).Named(logging.ComponentPipeline),
		commit: gitCommit,
	}
}

// Dir returns the directory results are written to.
func (r *Runner) Dir() string {
	return filepath.Join(r.cfg.ResultsDir, r.cfg.RunID)
}

// Run executes the whole run and writes summary.json. Cases without an ID
// or notes are skipped. ErrNoResults is returned when nothing was generated.
func (r *Runner) Run(ctx context.Context) (*RunSummary, error) {
	dir := r.Dir()
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "config.json"), r.cfg); err != nil {
		return nil, err
	}

	r.logger.Info("starting run",
		zap.String("run_id", r.cfg.RunID),
		zap.String("model", r.cfg.Model))

	cases, err := LoadCases(r.cfg.DataFile)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "data_info.json"), newDataInfo(r.cfg.DataFile, cases)); err != nil {
		return nil, err
	}
	r.logger.Info("loaded test cases", zap.Int("count", len(cases)))

	tmpl, err := loadPromptText(r.cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	if err := writeText(filepath.Join(dir, "prompt.txt"), tmpl); err != nil {
		return nil, err
	}

	var results []CaseResult
	for i, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.ID == "" {
			r.logger.Warn("skipping case: no ID", zap.Int("index", i))
			continue
		}
		if !validCaseID(c.ID) {
			r.logger.Warn("skipping case: invalid ID", zap.String("case", c.ID))
			continue
		}
		if c.Notes == "" {
			r.logger.Warn("skipping case: no notes", zap.String("case", c.ID))
			continue
		}

		r.logger.Info("processing case",
			zap.Int("n", i+1),
			zap.Int("total", len(cases)),
			zap.String("case", c.ID))

		result := r.generate(ctx, c, tmpl)
		results = append(results, result)

		if err := writeJSON(filepath.Join(dir, c.ID+".json"), result); err != nil {
			return nil, err
		}
		if err := writeText(filepath.Join(dir, c.ID+"_output.txt"), result.Output); err != nil {
			return nil, err
		}
	}
	r.logger.Info("completed generation", zap.Int("cases", len(results)))

	if len(results) == 0 {
		r.logger.Error("no results for summary")
		return nil, ErrNoResults
	}

	successful, stats := summarizeRuns(results)
	summary := &RunSummary{
		RunID:           r.cfg.RunID,
		Timestamp:       time.Now(),
		Model:           r.cfg.Model,
		GitCommit:       r.commit(ctx),
		TotalCases:      len(results),
		SuccessfulCases: successful,
		FailedCases:     len(results) - successful,
		RuntimeStats:    stats,
	}
	summary.RunSuccess = summary.FailedCases == 0

	if err := writeJSON(filepath.Join(dir, "summary.json"), summary); err != nil {
		return nil, err
	}

	r.logger.Info("run completed",
		zap.String("dir", dir),
		zap.Bool("success", summary.RunSuccess),
		zap.Int("succeeded", summary.SuccessfulCases),
		zap.Int("failed", summary.FailedCases),
		zap.Float64("avg_runtime", stats.Avg))
	return summary, nil
}

// generate renders the prompt for c and calls the model. Failures are
// recorded in the result rather than returned.
func (r *Runner) generate(ctx context.Context, c Case, tmpl string) CaseResult {
	result := CaseResult{
		RunID:     r.cfg.RunID,
		TestID:    c.ID,
		Status:    StatusSuccess,
		StartTime: time.Now(),
	}

	output, err := r.gen.Generate(ctx, prompt.Render(tmpl, map[string]string{"notes": c.Notes}))
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		r.logger.Error("generation error", zap.String("case", c.ID), zap.Error(err))
	} else {
		result.Output = output
	}

	result.EndTime = time.Now()
	result.Runtime = result.EndTime.Sub(result.StartTime).Seconds()
	return result
}
