// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/conversation"
	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/prompt"
)

const (
	outputSuffix = "_output.txt"

	// analysisFailed is recorded when the improvement analysis request fails.
	analysisFailed = "Error generating improvement analysis."
)

// evalFormatReminder is appended to evaluation prompts that carry no
// placeholders of their own.
const evalFormatReminder = `
VERY IMPORTANT: You MUST rate each dimension on a scale of 1-5 and follow the EXACT output format specified earlier.
You MUST rate each dimension separately and provide a weighted overall score.

Your response MUST begin with "### Patient Evaluation" and include NUMERICAL RATINGS for each dimension.
For example, your ratings must look like this:
**Completeness:** 4 / 5
**Accuracy:** 3.5 / 5
**No Hallucinations:** 4 / 5
**Clinical Safety:** 5 / 5
**Coherence:** 3 / 5
**Weighted Overall Score:** 3.9 / 5

DO NOT substitute numerical ratings with qualitative terms like "excellent" or "good".
Always use the format "X / 5" where X is a number between 1 and 5.
`

// =============================================================================
// EVALUATOR
// =============================================================================

// Evaluator grades the letters of a finished run against reference letters.
// Evaluator is not safe for concurrent use.
type Evaluator struct {
	cfg    EvalConfig
	gen    Generator
	logger *zap.Logger
}

// NewEvaluator creates an evaluator. cfg should already have defaults applied.
func NewEvaluator(cfg EvalConfig, gen Generator, logger *zap.Logger) *Evaluator {
	if len(cfg.Weights) == 0 {
		cfg.Weights = DefaultWeights()
	}
	return &Evaluator{
		cfg:    cfg,
		gen:    gen,
		logger: logging.OrNop(logger).Named(logging.ComponentPipeline),
	}
}

// Dir returns the directory evaluation output is written to.
func (e *Evaluator) Dir() string {
	return filepath.Join(e.cfg.EvalDir, e.cfg.EvalID)
}

// RunDir returns the directory of the run being evaluated.
func (e *Evaluator) RunDir() string {
	return filepath.Join(e.cfg.ResultsDir, e.cfg.RunID)
}

// Run grades every case that has notes, a reference letter and a generated
// letter, then writes eval_summary.json and evaluation_report.md.
func (e *Evaluator) Run(ctx context.Context) (*EvalSummary, error) {
	dir := e.Dir()
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "eval_config.json"), e.cfg); err != nil {
		return nil, err
	}

	e.logger.Info("starting evaluation",
		zap.String("eval_id", e.cfg.EvalID),
		zap.String("run_id", e.cfg.RunID),
		zap.String("model", e.cfg.Model))

	cases, err := LoadCases(e.cfg.DataFile)
	if err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(dir, "data_info.json"), newDataInfo(e.cfg.DataFile, cases)); err != nil {
		return nil, err
	}

	tmpl, err := loadPromptText(e.cfg.PromptFile)
	if err != nil {
		return nil, err
	}
	if err := writeText(filepath.Join(dir, "eval_prompt.txt"), tmpl); err != nil {
		return nil, err
	}

	letters, err := e.loadGeneratedLetters()
	if err != nil {
		return nil, err
	}

	var (
		evaluated []string
		texts     []string
		metrics   = make(map[string]Metrics)
		all       []Metrics
	)
	for _, c := range cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if c.ID == "" {
			e.logger.Warn("skipping case: no ID")
			continue
		}
		if !validCaseID(c.ID) {
			e.logger.Warn("skipping case: invalid ID", zap.String("case", c.ID))
			continue
		}
		if c.Notes == "" || c.Reference == "" {
			e.logger.Warn("skipping case: missing required fields", zap.String("case", c.ID))
			continue
		}
		letter, ok := letters[c.ID]
		if !ok {
			e.logger.Warn("skipping case: no generated letter found", zap.String("case", c.ID))
			continue
		}

		e.logger.Info("evaluating case", zap.String("case", c.ID))
		result := e.evaluate(ctx, c, tmpl, letter)

		if err := writeJSON(filepath.Join(dir, c.ID+"_eval.json"), result); err != nil {
			return nil, err
		}
		if err := writeText(filepath.Join(dir, c.ID+"_evaluation.txt"), result.Evaluation); err != nil {
			return nil, err
		}

		evaluated = append(evaluated, c.ID)
		metrics[c.ID] = result.Metrics
		all = append(all, result.Metrics)
		texts = append(texts, fmt.Sprintf("--- CASE %s ---\n%s", c.ID, result.Evaluation))
	}
	e.logger.Info("completed evaluation", zap.Int("cases", len(evaluated)))

	if len(evaluated) == 0 {
		e.logger.Error("no results for summary")
		return nil, ErrNoResults
	}

	summary := &EvalSummary{
		EvalID:              e.cfg.EvalID,
		RunID:               e.cfg.RunID,
		Timestamp:           time.Now(),
		Model:               e.cfg.Model,
		CasesEvaluated:      evaluated,
		AverageMetrics:      averageMetrics(all),
		CaseMetrics:         metrics,
		ImprovementAnalysis: e.improvementAnalysis(ctx, texts),
	}

	if err := writeJSON(filepath.Join(dir, "eval_summary.json"), summary); err != nil {
		return nil, err
	}
	if err := writeText(filepath.Join(dir, "evaluation_report.md"), RenderReport(summary)); err != nil {
		return nil, err
	}

	e.logger.Info("evaluation completed",
		zap.String("dir", dir),
		zap.Float64("avg_weighted_score", summary.AverageMetrics.WeightedScore))
	return summary, nil
}

// loadGeneratedLetters maps case IDs to the letters of the evaluated run.
func (e *Evaluator) loadGeneratedLetters() (map[string]string, error) {
	runDir := e.RunDir()
	if _, err := os.Stat(runDir); err != nil {
		return nil, fmt.Errorf("run directory not found: %s", runDir)
	}

	files, err := filepath.Glob(filepath.Join(runDir, "*"+outputSuffix))
	if err != nil {
		return nil, fmt.Errorf("failed to list outputs: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no output files found in %s", runDir)
	}

	letters := make(map[string]string, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(f), err)
		}
		id := strings.TrimSuffix(filepath.Base(f), outputSuffix)
		letters[id] = string(data)
	}

	e.logger.Info("loaded generated letters",
		zap.Int("count", len(letters)),
		zap.String("dir", runDir))
	return letters, nil
}

// evaluate grades one letter. Failures are recorded in the result.
func (e *Evaluator) evaluate(ctx context.Context, c Case, tmpl, letter string) CaseEvaluation {
	result := CaseEvaluation{
		CaseID:    c.ID,
		Status:    StatusSuccess,
		StartTime: time.Now(),
	}

	p := BuildEvalPrompt(tmpl, c.Notes, c.Reference, letter)
	text, err := e.gen.Generate(ctx, p)
	if err != nil {
		result.Status = StatusError
		result.Error = err.Error()
		e.logger.Error("evaluation error", zap.String("case", c.ID), zap.Error(err))
	} else {
		result.Evaluation = text
		result.Metrics = ExtractMetrics(text, e.cfg.Weights)
	}

	result.EndTime = time.Now()
	result.Runtime = result.EndTime.Sub(result.StartTime).Seconds()
	return result
}

// improvementAnalysis asks the model to summarize weaknesses across every
// evaluation. Failures return a fixed notice.
func (e *Evaluator) improvementAnalysis(ctx context.Context, evaluations []string) string {
	name := e.cfg.SummaryPromptFile
	if name == "" {
		name = prompt.NameImprovement
	}
	tmpl, err := loadPromptText(name)
	if err != nil {
		e.logger.Error("improvement analysis prompt", zap.Error(err))
		return analysisFailed
	}

	joined := strings.Join(evaluations, "\n")
	var p string
	if strings.Contains(tmpl, "{{evaluations}}") {
		p = prompt.Render(tmpl, map[string]string{"evaluations": joined})
	} else {
		p = tmpl + "\n\n### EVALUATIONS:\n\n" + joined
	}

	e.logger.Info("generating improvement analysis")
	analysis, err := e.gen.Generate(ctx, p)
	if err != nil {
		e.logger.Error("improvement analysis failed", zap.Error(err))
		return analysisFailed
	}
	if analysis == "" {
		e.logger.Error("empty improvement analysis response")
	}
	return analysis
}

// BuildEvalPrompt fills an evaluation template. The generated letter has its
// thinking segment removed. Templates without placeholders get the notes,
// reference and letter appended as fenced sections followed by the rating
// format reminder.
func BuildEvalPrompt(tmpl, notes, reference, generated string) string {
	generated = conversation.StripThinking(generated)

	if len(prompt.Placeholders(tmpl)) > 0 {
		return prompt.Render(tmpl, map[string]string{
			"notes":     notes,
			"reference": reference,
			"letter":    generated,
		})
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(tmpl)
	sb.WriteString("\n\n## Original Clinical Notes\n```\n")
	sb.WriteString(notes)
	sb.WriteString("\n```\n\n## Ground Truth Letter (Written by Human Physiotherapist)\n```\n")
	sb.WriteString(reference)
	sb.WriteString("\n```\n\n## Generated Letter\n```\n")
	sb.WriteString(generated)
	sb.WriteString("\n```\n")
	sb.WriteString(evalFormatReminder)
	return sb.String()
}
