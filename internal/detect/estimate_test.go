// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import "testing"

func TestEstimateParameterCount(t *testing.T) {
	tests := []struct {
		id   string
		want float64
	}{
		// family + size specials
		{"mixtral:8x7b", 46.7},
		{"mixtral:8x22b-instruct", 141},
		{"llama4:scout", 109},
		{"llama4:maverick", 400},

		// fixed family tokens
		{"deepseek-v3:latest", 671},
		{"deepseek-coder-v2:lite", 16},
		{"phi3:mini", 3.8},
		{"phi3:medium-128k", 14},
		{"phi3.5", 3.8},

		// explicit size token
		{"llama3.1:8b", 8},
		{"llama3.1:70b-instruct-q4_K_M", 70},
		{"qwen2.5:0.5b", 0.5},
		{"deepseek-r1:1.5b", 1.5},
		{"hf.co/bartowski/mistral-nemo:12b", 12},
		{"GEMMA2:27B", 27},

		// known names
		{"llama3", 8},
		{"llama3:latest", 8},
		{"mistral", 7.2},
		{"tinyllama", 1.1},
		{"nous-hermes", 13},
		{"orca-mini:latest", 3},

		// family prefixes
		{"llama3.2", 8},
		{"codellama-python", 7},
		{"starcoder2", 7},
		{"qwen3", 7},
		{"phi-2", 3.8},
		{"mixtral", 46.7},

		// default
		{"nomic-embed-text", 7},
		{"", 7},
		{"model-8bit", 7},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			if got := EstimateParameterCount(tt.id); got != tt.want {
				t.Errorf("EstimateParameterCount(%q) = %v, want %v", tt.id, got, tt.want)
			}
		})
	}
}

func TestExplicitSizeOutranksFamilyDefault(t *testing.T) {
	// codellama defaults to 7B; the explicit 13b token must win.
	if got := EstimateParameterCount("codellama:13b"); got != 13 {
		t.Errorf("EstimateParameterCount(codellama:13b) = %v, want 13", got)
	}
	if got := EstimateParameterCount("codellama"); got != 7 {
		t.Errorf("EstimateParameterCount(codellama) = %v, want 7", got)
	}
}
