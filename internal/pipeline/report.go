// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package pipeline

import (
	"fmt"
	"strings"
)

// =============================================================================
// MARKDOWN REPORT
// =============================================================================

// RenderReport formats an evaluation summary as Markdown.
func RenderReport(s *EvalSummary) string {
	var sb strings.Builder

	sb.WriteString("# Referral Letter Evaluation\n\n")

	sb.WriteString("## Summary\n")
	sb.WriteString(fmt.Sprintf("- **Evaluation ID:** %s\n", s.EvalID))
	sb.WriteString(fmt.Sprintf("- **Run ID:** %s\n", s.RunID))
	sb.WriteString(fmt.Sprintf("- **Model:** %s\n", s.Model))
	sb.WriteString(fmt.Sprintf("- **Date:** %s\n", s.Timestamp.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("- **Cases Evaluated:** %d\n\n", len(s.CasesEvaluated)))

	sb.WriteString("## Average Metrics\n")
	writeMetrics(&sb, s.AverageMetrics)

	sb.WriteString("\n## Improvement Recommendations\n")
	analysis := s.ImprovementAnalysis
	if analysis == "" {
		analysis = "No improvement analysis available."
	}
	sb.WriteString(analysis)
	sb.WriteString("\n\n## Case Metrics\n")

	for _, id := range s.CasesEvaluated {
		sb.WriteString(fmt.Sprintf("\n### %s\n", id))
		writeMetrics(&sb, s.CaseMetrics[id])
	}

	return sb.String()
}

func writeMetrics(sb *strings.Builder, m Metrics) {
	sb.WriteString(fmt.Sprintf("- **Completeness:** %.2f/5\n", m.Completeness))
	sb.WriteString(fmt.Sprintf("- **Accuracy:** %.2f/5\n", m.Accuracy))
	sb.WriteString(fmt.Sprintf("- **No Hallucinations:** %.2f/5\n", m.NoHallucinations))
	sb.WriteString(fmt.Sprintf("- **Clinical Safety:** %.2f/5\n", m.ClinicalSafety))
	sb.WriteString(fmt.Sprintf("- **Coherence:** %.2f/5\n", m.Coherence))
	sb.WriteString(fmt.Sprintf("- **Weighted Overall Score:** %.2f/5\n", m.WeightedScore))
}
