// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults shared by run and eval configs.
const (
	DefaultEndpoint    = "http://localhost:11434"
	DefaultTimeoutSecs = 1800
	DefaultResultsDir  = "results"
	DefaultEvalDir     = "eval_results"
)

// Metric keys used in weights and metrics maps.
const (
	MetricCompleteness     = "completeness"
	MetricAccuracy         = "accuracy"
	MetricNoHallucinations = "no_hallucinations"
	MetricClinicalSafety   = "clinical_safety"
	MetricCoherence        = "coherence"
	MetricWeightedScore    = "weighted_score"
)

// Weights maps a metric key to its share of the weighted score.
type Weights map[string]float64

// DefaultWeights returns the standard rating weights.
func DefaultWeights() Weights {
	return Weights{
		MetricCompleteness:     0.25,
		MetricAccuracy:         0.30,
		MetricNoHallucinations: 0.20,
		MetricClinicalSafety:   0.20,
		MetricCoherence:        0.05,
	}
}

// =============================================================================
// RUN CONFIG
// =============================================================================

// RunConfig configures a generation run.
type RunConfig struct {
	Model      string `json:"model" yaml:"model"`
	DataFile   string `json:"data_file" yaml:"data_file"`
	PromptFile string `json:"prompt_file" yaml:"prompt_file"`
	RunID      string `json:"run_id" yaml:"run_id"`
	Endpoint   string `json:"endpoint" yaml:"endpoint"`
	Timeout    int    `json:"timeout" yaml:"timeout"` // seconds
	ResultsDir string `json:"results_dir" yaml:"results_dir"`
}

// LoadRunConfig reads a run config and applies defaults.
func LoadRunConfig(path string) (RunConfig, error) {
	var cfg RunConfig
	if err := readConfigFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults(time.Now())
	return cfg, nil
}

// Validate checks required fields.
func (c RunConfig) Validate() error {
	return requireFields(map[string]string{
		"model":       c.Model,
		"data_file":   c.DataFile,
		"prompt_file": c.PromptFile,
	})
}

// ApplyDefaults fills unset optional fields. now seeds the run ID.
func (c *RunConfig) ApplyDefaults(now time.Time) {
	if c.RunID == "" {
		c.RunID = "run_" + now.Format("20060102_150405")
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeoutSecs
	}
	if c.ResultsDir == "" {
		c.ResultsDir = DefaultResultsDir
	}
}

// RequestTimeout returns Timeout as a duration.
func (c RunConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// =============================================================================
// EVAL CONFIG
// =============================================================================

// EvalConfig configures an evaluation of a finished run.
type EvalConfig struct {
	Model             string  `json:"model" yaml:"model"`
	DataFile          string  `json:"data_file" yaml:"data_file"`
	PromptFile        string  `json:"prompt_file" yaml:"prompt_file"`
	RunID             string  `json:"run_id" yaml:"run_id"`
	EvalID            string  `json:"eval_id" yaml:"eval_id"`
	SummaryPromptFile string  `json:"summary_prompt_file,omitempty" yaml:"summary_prompt_file"`
	Endpoint          string  `json:"endpoint" yaml:"endpoint"`
	Timeout           int     `json:"timeout" yaml:"timeout"` // seconds
	ResultsDir        string  `json:"results_dir" yaml:"results_dir"`
	EvalDir           string  `json:"eval_dir" yaml:"eval_dir"`
	Weights           Weights `json:"weights" yaml:"weights"`
}

// LoadEvalConfig reads an eval config and applies defaults.
func LoadEvalConfig(path string) (EvalConfig, error) {
	var cfg EvalConfig
	if err := readConfigFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	cfg.ApplyDefaults(time.Now())
	return cfg, nil
}

// Validate checks required fields.
func (c EvalConfig) Validate() error {
	return requireFields(map[string]string{
		"model":       c.Model,
		"data_file":   c.DataFile,
		"prompt_file": c.PromptFile,
		"run_id":      c.RunID,
	})
}

// ApplyDefaults fills unset optional fields. now seeds the eval ID.
func (c *EvalConfig) ApplyDefaults(now time.Time) {
	if c.EvalID == "" {
		c.EvalID = "eval_" + now.Format("20060102_150405")
	}
	if c.Endpoint == "" {
		c.Endpoint = DefaultEndpoint
	}
	c.Endpoint = strings.TrimRight(c.Endpoint, "/")
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeoutSecs
	}
	if c.ResultsDir == "" {
		c.ResultsDir = DefaultResultsDir
	}
	if c.EvalDir == "" {
		c.EvalDir = DefaultEvalDir
	}
	if len(c.Weights) == 0 {
		c.Weights = DefaultWeights()
	}
}

// RequestTimeout returns Timeout as a duration.
func (c EvalConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// =============================================================================
// FILE HELPERS
// =============================================================================

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func readConfigFile(path string, out interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file not found: %w", err)
	}
	if isYAML(path) {
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

// requireFields reports every empty required field.
func requireFields(fields map[string]string) error {
	var missing []string
	for _, name := range []string{"model", "data_file", "prompt_file", "run_id"} {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config fields: %s", strings.Join(missing, ", "))
	}
	return nil
}
