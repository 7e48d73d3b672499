// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// =============================================================================
// COMFORT LEVEL
// =============================================================================

// Level is the predicted run comfort of a model.
// The zero value is LevelImpossible.
type Level int

const (
	LevelImpossible Level = iota
	LevelDifficult
	LevelEasy
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelEasy:
		return "Easy"
	case LevelDifficult:
		return "Difficult"
	default:
		return "Impossible"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	switch strings.ToLower(string(text)) {
	case "easy":
		*l = LevelEasy
	case "difficult":
		*l = LevelDifficult
	case "impossible":
		*l = LevelImpossible
	default:
		return fmt.Errorf("unknown compatibility level %q", text)
	}
	return nil
}

// User-facing messages per level.
const (
	MessageEasy       = "This model should run comfortably on your computer."
	MessageDifficult  = "This model may run on your computer but could be slow."
	MessageImpossible = "This model is likely too large to run on your computer."
	MessageLongWait   = "Generating a letter may take several minutes with this model."
)

// =============================================================================
// RULE TABLE
// =============================================================================

// CompatibilityRule is one row of the lookup table. RAM buckets are
// half-open (RAMLower, RAMUpper], except that a bucket starting at 0 also
// holds 0, so every RAM value falls in exactly one bucket. Size bounds are
// inclusive.
type CompatibilityRule struct {
	Arch      ArchClass
	RAMLower  float64
	RAMUpper  float64
	SizeLower float64
	SizeUpper float64
	Level     Level
}

// Matches reports whether the row covers (arch, ramGB, paramsB).
func (r CompatibilityRule) Matches(arch ArchClass, ramGB, paramsB float64) bool {
	inBucket := ramGB <= r.RAMUpper &&
		(ramGB > r.RAMLower || (r.RAMLower == 0 && ramGB >= 0))
	return r.Arch == arch && inBucket &&
		paramsB >= r.SizeLower && paramsB <= r.SizeUpper
}

var inf = math.Inf(1)

// DefaultRules is evaluated top to bottom; the first matching row wins, so a
// size equal to an Easy upper bound is Easy and anything above it falls
// through to the Difficult row. Sizes above every row are Impossible.
var DefaultRules = []CompatibilityRule{
	{ArchOther, 0, 8, 0, 4, LevelEasy},
	{ArchOther, 0, 8, 4, 8, LevelDifficult},
	{ArchOther, 8, 16, 0, 8, LevelEasy},
	{ArchOther, 8, 16, 8, 14, LevelDifficult},
	{ArchOther, 16, 32, 0, 14, LevelEasy},
	{ArchOther, 16, 32, 14, 34, LevelDifficult},
	{ArchOther, 32, 64, 0, 34, LevelEasy},
	{ArchOther, 32, 64, 34, 72, LevelDifficult},
	{ArchOther, 64, inf, 0, 72, LevelEasy},
	{ArchOther, 64, inf, 72, 140, LevelDifficult},

	{ArchUnifiedMemory, 0, 8, 0, 4, LevelEasy},
	{ArchUnifiedMemory, 0, 8, 4, 8, LevelDifficult},
	{ArchUnifiedMemory, 8, 16, 0, 9, LevelEasy},
	{ArchUnifiedMemory, 8, 16, 9, 16, LevelDifficult},
	{ArchUnifiedMemory, 16, 32, 0, 16, LevelEasy},
	{ArchUnifiedMemory, 16, 32, 16, 34, LevelDifficult},
	{ArchUnifiedMemory, 32, 64, 0, 34, LevelEasy},
	{ArchUnifiedMemory, 32, 64, 34, 72, LevelDifficult},
	{ArchUnifiedMemory, 64, 128, 0, 72, LevelEasy},
	{ArchUnifiedMemory, 64, 128, 72, 140, LevelDifficult},
	{ArchUnifiedMemory, 128, inf, 0, 140, LevelEasy},
	{ArchUnifiedMemory, 128, inf, 140, 700, LevelDifficult},
}

// =============================================================================
// EVALUATION
// =============================================================================

// CompatibilityResult is the outcome of EvaluateCompatibility.
type CompatibilityResult struct {
	ModelID string  `json:"model"`
	ParamsB float64 `json:"params_b"`
	Level   Level   `json:"level"`
	Message string  `json:"message"`
	// LongWaitMessage is set only for LevelDifficult.
	LongWaitMessage string `json:"long_wait_message,omitempty"`
	// SizeLower and SizeUpper are the size range of the matched row
	// (zero when nothing matched).
	SizeLower float64 `json:"size_lower"`
	SizeUpper float64 `json:"size_upper"`
}

// EvaluateCompatibility classifies modelID on hw using DefaultRules.
func EvaluateCompatibility(modelID string, hw HardwareFacts) CompatibilityResult {
	return EvaluateWithRules(modelID, hw, DefaultRules)
}

// EvaluateWithRules classifies modelID on hw using rules.
func EvaluateWithRules(modelID string, hw HardwareFacts, rules []CompatibilityRule) CompatibilityResult {
	params := EstimateParameterCount(modelID)
	arch := hw.ArchClass()

	res := CompatibilityResult{ModelID: modelID, ParamsB: params}
	for _, r := range rules {
		if r.Matches(arch, hw.RAMGB, params) {
			res.Level = r.Level
			res.SizeLower = r.SizeLower
			res.SizeUpper = r.SizeUpper
			break
		}
	}

	res.Message = levelMessage(res.Level)
	if res.Level == LevelDifficult {
		res.LongWaitMessage = MessageLongWait
	}
	return res
}

func levelMessage(l Level) string {
	switch l {
	case LevelEasy:
		return MessageEasy
	case LevelDifficult:
		return MessageDifficult
	default:
		return MessageImpossible
	}
}

// RankModels evaluates every model and orders them most comfortable first,
// then largest first within a level (a bigger model that still runs
// comfortably usually writes better letters).
func RankModels(modelIDs []string, hw HardwareFacts) []CompatibilityResult {
	results := make([]CompatibilityResult, 0, len(modelIDs))
	for _, id := range modelIDs {
		results = append(results, EvaluateCompatibility(id, hw))
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Level != results[j].Level {
			return results[i].Level > results[j].Level
		}
		return results[i].ParamsB > results[j].ParamsB
	})
	return results
}
