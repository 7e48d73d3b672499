// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"regexp"
	"strconv"

	"github.com/jeranaias/letterscribe/internal/conversation"
)

// Metrics holds the 1-5 ratings read from one evaluation. Zero means the
// rating was not found.
type Metrics struct {
	Completeness     float64 `json:"completeness"`
	Accuracy         float64 `json:"accuracy"`
	NoHallucinations float64 `json:"no_hallucinations"`
	ClinicalSafety   float64 `json:"clinical_safety"`
	Coherence        float64 `json:"coherence"`
	WeightedScore    float64 `json:"weighted_score"`
}

var metricPatterns = []struct {
	key   string
	regex *regexp.Regexp
}{
	{MetricCompleteness, ratingRegex("Completeness")},
	{MetricAccuracy, ratingRegex("Accuracy")},
	{MetricNoHallucinations, ratingRegex("No Hallucinations")},
	{MetricClinicalSafety, ratingRegex("Clinical Safety")},
	{MetricCoherence, ratingRegex("Coherence")},
	{MetricWeightedScore, ratingRegex("Weighted Overall Score")},
}

func ratingRegex(label string) *regexp.Regexp {
	return regexp.MustCompile(`\*\*` + regexp.QuoteMeta(label) + `:\*\*\s*(\d+(?:\.\d+)?)\s*/\s*5`)
}

// ExtractMetrics reads "**Name:** X / 5" ratings from an evaluation. When the
// weighted score is missing but any other rating was found, it is computed
// from weights.
func ExtractMetrics(evaluation string, weights Weights) Metrics {
	text := conversation.StripThinking(evaluation)

	var m Metrics
	for _, p := range metricPatterns {
		match := p.regex.FindStringSubmatch(text)
		if match == nil {
			continue
		}
		v, err := strconv.ParseFloat(match[1], 64)
		if err != nil {
			continue
		}
		m.set(p.key, v)
	}

	if m.WeightedScore == 0 && m.anyRating() {
		m.WeightedScore = m.weighted(weights)
	}
	return m
}

// Get returns the metric for key, or 0 for an unknown key.
func (m Metrics) Get(key string) float64 {
	switch key {
	case MetricCompleteness:
		return m.Completeness
	case MetricAccuracy:
		return m.Accuracy
	case MetricNoHallucinations:
		return m.NoHallucinations
	case MetricClinicalSafety:
		return m.ClinicalSafety
	case MetricCoherence:
		return m.Coherence
	case MetricWeightedScore:
		return m.WeightedScore
	}
	return 0
}

func (m *Metrics) set(key string, v float64) {
	switch key {
	case MetricCompleteness:
		m.Completeness = v
	case MetricAccuracy:
		m.Accuracy = v
	case MetricNoHallucinations:
		m.NoHallucinations = v
	case MetricClinicalSafety:
		m.ClinicalSafety = v
	case MetricCoherence:
		m.Coherence = v
	case MetricWeightedScore:
		m.WeightedScore = v
	}
}

func (m Metrics) anyRating() bool {
	return m.Completeness > 0 || m.Accuracy > 0 || m.NoHallucinations > 0 ||
		m.ClinicalSafety > 0 || m.Coherence > 0
}

func (m Metrics) weighted(weights Weights) float64 {
	var total float64
	for key, w := range weights {
		if key == MetricWeightedScore {
			continue
		}
		total += m.Get(key) * w
	}
	return total
}

// averageMetrics returns the per-field mean of ms.
func averageMetrics(ms []Metrics) Metrics {
	var avg Metrics
	if len(ms) == 0 {
		return avg
	}
	for _, m := range ms {
		for _, p := range metricPatterns {
			avg.set(p.key, avg.Get(p.key)+m.Get(p.key))
		}
	}
	n := float64(len(ms))
	for _, p := range metricPatterns {
		avg.set(p.key, avg.Get(p.key)/n)
	}
	return avg
}
