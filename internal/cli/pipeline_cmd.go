// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/jeranaias/letterscribe/internal/ollama"
	"github.com/jeranaias/letterscribe/internal/pipeline"
)

// =============================================================================
// PIPELINE RUN
// =============================================================================

func newPipelineCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Generate letters for a set of test cases",
	}
	cmd.AddCommand(newPipelineRunCmd(app))
	return cmd
}

func newPipelineRunCmd(app *App) *cobra.Command {
	var (
		runID string
		model string
	)
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Run a batch generation from a JSON or YAML config",
		Long: `Generate a letter for every case in the config's data file.

Required config fields: model, data_file, prompt_file. Optional: run_id,
endpoint, timeout (seconds), results_dir. prompt_file may name a built-in
template such as "letter". Results are written to <results_dir>/<run_id>.`,
		Example: `  letterscribe pipeline run configs/baseline.yaml
  letterscribe pipeline run run.json --model qwen2.5:7b --run-id qwen_baseline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pipeline.LoadRunConfig(args[0])
			if err != nil {
				return err
			}
			if runID != "" {
				cfg.RunID = runID
			}
			if model != "" {
				cfg.Model = model
			}

			logger, err := app.Logger()
			if err != nil {
				return err
			}
			gw := ollama.NewGateway(ollama.NewStaticSettings(cfg.Endpoint, cfg.Model), &ollama.GatewayConfig{
				Timeout: cfg.RequestTimeout(),
				Logger:  logger,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("Pipeline run "+cfg.RunID))
			fmt.Fprintln(out, RenderField("Model", cfg.Model))
			fmt.Fprintln(out, RenderField("Cases", cfg.DataFile))

			runner := pipeline.NewRunner(cfg, gw, logger)
			summary, err := runner.Run(cmd.Context())
			if err != nil {
				return err
			}
			printRunSummary(out, summary, runner.Dir())
			if !summary.RunSuccess {
				return fmt.Errorf("%d case(s) failed", summary.FailedCases)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "override run_id")
	cmd.Flags().StringVar(&model, "model", "", "override model")
	return cmd
}

func printRunSummary(out io.Writer, s *pipeline.RunSummary, dir string) {
	fmt.Fprintln(out, SectionStyle.Render("Summary"))
	fmt.Fprintln(out, RenderField("Cases", strconv.Itoa(s.TotalCases)))
	fmt.Fprintln(out, RenderField("Succeeded", strconv.Itoa(s.SuccessfulCases)))
	fmt.Fprintln(out, RenderField("Failed", strconv.Itoa(s.FailedCases)))
	fmt.Fprintln(out, RenderField("Runtime avg", fmt.Sprintf("%.1fs", s.RuntimeStats.Avg)))
	fmt.Fprintln(out, RenderField("Runtime range", fmt.Sprintf("%.1fs - %.1fs", s.RuntimeStats.Min, s.RuntimeStats.Max)))
	fmt.Fprintln(out, RenderField("Commit", s.GitCommit))
	fmt.Fprintln(out, RenderField("Results", dir))
}

// =============================================================================
// EVAL RUN
// =============================================================================

func newEvalCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Grade generated letters against reference letters",
	}
	cmd.AddCommand(newEvalRunCmd(app))
	return cmd
}

func newEvalRunCmd(app *App) *cobra.Command {
	var (
		evalID string
		runID  string
		quiet  bool
	)
	cmd := &cobra.Command{
		Use:   "run <config>",
		Short: "Evaluate a pipeline run from a JSON or YAML config",
		Long: `Grade every generated letter of a run against its reference letter.

Required config fields: model, data_file, prompt_file, run_id. Optional:
eval_id, summary_prompt_file, endpoint, timeout, results_dir, eval_dir and
weights (completeness, accuracy, no_hallucinations, clinical_safety,
coherence). The Markdown report is printed when the run finishes.`,
		Example: `  letterscribe eval run configs/eval.yaml
  letterscribe eval run eval.json --run-id qwen_baseline`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := pipeline.LoadEvalConfig(args[0])
			if err != nil {
				return err
			}
			if evalID != "" {
				cfg.EvalID = evalID
			}
			if runID != "" {
				cfg.RunID = runID
			}

			logger, err := app.Logger()
			if err != nil {
				return err
			}
			gw := ollama.NewGateway(ollama.NewStaticSettings(cfg.Endpoint, cfg.Model), &ollama.GatewayConfig{
				Timeout: cfg.RequestTimeout(),
				Logger:  logger,
			})

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("Evaluation "+cfg.EvalID+" of run "+cfg.RunID))

			evaluator := pipeline.NewEvaluator(cfg, gw, logger)
			summary, err := evaluator.Run(cmd.Context())
			if err != nil {
				return err
			}

			reportPath := filepath.Join(evaluator.Dir(), "evaluation_report.md")
			if !quiet {
				report := pipeline.RenderReport(summary)
				if data, err := os.ReadFile(reportPath); err == nil {
					report = string(data)
				}
				fmt.Fprintln(out, renderMarkdown(report))
			}
			fmt.Fprintln(out, RenderField("Weighted score", fmt.Sprintf("%.2f/5", summary.AverageMetrics.WeightedScore)))
			fmt.Fprintln(out, RenderField("Report", reportPath))
			return nil
		},
	}
	cmd.Flags().StringVar(&evalID, "eval-id", "", "override eval_id")
	cmd.Flags().StringVar(&runID, "run-id", "", "override run_id")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "do not print the report")
	return cmd
}

// renderMarkdown renders Markdown for a terminal. Piped output and render
// failures get the source text.
func renderMarkdown(content string) string {
	if !ColorsEnabled() {
		return content
	}
	width := GetTerminalWidth()
	if width > 100 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}
