// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultParamsB is returned when nothing in the identifier is recognised.
const DefaultParamsB = 7.0

// =============================================================================
// PERFORMANCE: Pre-compiled regex (compiled once at startup)
// =============================================================================

// sizeTokenRegex matches an explicit size such as "13b" or "1.5b" that is
// not immediately followed by another letter ("8bit" is not a size).
var sizeTokenRegex = regexp.MustCompile(`(\d+(?:\.\d+)?)b(?:[^a-z]|$)`)

// =============================================================================
// RULE TABLES (order matters: first match wins)
// =============================================================================

// familySizeSpecials are families whose size tags do not follow the
// "<n>b" convention.
var familySizeSpecials = []struct {
	family, size string
	params       float64
}{
	{"mixtral", "8x7b", 46.7},
	{"mixtral", "8x22b", 141},
	{"llama4", "scout", 109},
	{"llama4", "maverick", 400},
}

// familyTokens map identifiers with a fixed, well-known size.
var familyTokens = []struct {
	token  string
	params float64
}{
	{"deepseek-v3", 671},
	{"deepseek-coder-v2:lite", 16},
	{"phi3:mini", 3.8},
	{"phi3:medium", 14},
	{"phi3.5", 3.8},
}

// knownNames are default sizes of untagged (":latest") models.
var knownNames = map[string]float64{
	"llama2":      7,
	"llama3":      8,
	"mistral":     7.2,
	"gemma":       7,
	"phi3":        3.8,
	"phi4":        14,
	"codellama":   7,
	"llava":       7,
	"qwen2.5":     7,
	"deepseek-r1": 7,
	"tinyllama":   1.1,
	"orca-mini":   3,
	"nous-hermes": 13,
}

// familyPrefixes are family defaults, longest prefix first so that
// "codellama" is not claimed by "llama".
var familyPrefixes = []struct {
	prefix string
	params float64
}{
	{"codellama", 7},
	{"starcoder", 7},
	{"deepseek", 7},
	{"mixtral", 46.7},
	{"mistral", 7},
	{"llama", 8},
	{"gemma", 7},
	{"qwen", 7},
	{"phi", 3.8},
}

// =============================================================================
// ESTIMATION
// =============================================================================

// EstimateParameterCount returns the model size in billions of parameters.
// Rules are evaluated in order and the first match wins:
//
//  1. family + size specials (mixtral 8x7b, llama4 scout, ...)
//  2. family tokens with a fixed size (deepseek-v3, phi3:mini, ...)
//  3. an explicit size token such as "13b"
//  4. known untagged model names
//  5. family prefixes
//  6. DefaultParamsB
func EstimateParameterCount(modelID string) float64 {
	id := strings.ToLower(strings.TrimSpace(modelID))

	for _, s := range familySizeSpecials {
		if strings.Contains(id, s.family) && strings.Contains(id, s.size) {
			return s.params
		}
	}

	for _, f := range familyTokens {
		if strings.Contains(id, f.token) {
			return f.params
		}
	}

	if m := sizeTokenRegex.FindStringSubmatch(id); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil && v > 0 {
			return v
		}
	}

	name := baseName(id)
	if v, ok := knownNames[name]; ok {
		return v
	}

	for _, p := range familyPrefixes {
		if strings.HasPrefix(name, p.prefix) {
			return p.params
		}
	}

	return DefaultParamsB
}

// baseName strips a registry/namespace path and the tag:
// "hf.co/org/llama3:latest" -> "llama3".
func baseName(id string) string {
	if i := strings.LastIndex(id, "/"); i >= 0 {
		id = id[i+1:]
	}
	if i := strings.Index(id, ":"); i >= 0 {
		id = id[:i]
	}
	return id
}
