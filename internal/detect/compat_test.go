// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"runtime"
	"strings"
	"testing"
)

var (
	linuxPC      = func(ram float64) HardwareFacts { return HardwareFacts{RAMGB: ram, OS: "linux", Arch: "amd64"} }
	appleSilicon = func(ram float64) HardwareFacts { return HardwareFacts{RAMGB: ram, OS: "darwin", Arch: "arm64"} }
)

func TestArchClass(t *testing.T) {
	tests := []struct {
		hw   HardwareFacts
		want ArchClass
	}{
		{HardwareFacts{OS: "darwin", Arch: "arm64"}, ArchUnifiedMemory},
		{HardwareFacts{OS: "darwin", Arch: "amd64"}, ArchOther},
		{HardwareFacts{OS: "linux", Arch: "arm64"}, ArchOther},
		{HardwareFacts{OS: "windows", Arch: "amd64"}, ArchOther},
	}
	for _, tt := range tests {
		if got := tt.hw.ArchClass(); got != tt.want {
			t.Errorf("%s/%s ArchClass() = %v, want %v", tt.hw.OS, tt.hw.Arch, got, tt.want)
		}
	}
}

func TestCompatibilityBoundaryAt8GB(t *testing.T) {
	hw := linuxPC(8)

	// 4B sits exactly on the Easy upper bound.
	easy := EvaluateCompatibility("qwen3:4b", hw)
	if easy.Level != LevelEasy {
		t.Errorf("4b on 8GB: Level = %v, want Easy", easy.Level)
	}
	if easy.SizeLower != 0 || easy.SizeUpper != 4 {
		t.Errorf("4b on 8GB: range = [%v, %v], want [0, 4]", easy.SizeLower, easy.SizeUpper)
	}

	// The next size above the bound is Difficult.
	diff := EvaluateCompatibility("model:4.1b", hw)
	if diff.Level != LevelDifficult {
		t.Errorf("4.1b on 8GB: Level = %v, want Difficult", diff.Level)
	}
	if diff.LongWaitMessage != MessageLongWait {
		t.Errorf("Difficult LongWaitMessage = %q, want %q", diff.LongWaitMessage, MessageLongWait)
	}
}

func TestRAMBucketBoundaries(t *testing.T) {
	// RAM exactly on a boundary belongs to the lower bucket, so a model above
	// that bucket's Difficult ceiling is Impossible rather than being judged
	// against the next bucket up.
	tests := []struct {
		name      string
		model     string
		hw        HardwareFacts
		want      Level
		wantLower float64
		wantUpper float64
	}{
		{"13b on exactly 8GB", "llama2:13b", linuxPC(8), LevelImpossible, 0, 0},
		{"13b on 8.01GB", "llama2:13b", linuxPC(8.01), LevelDifficult, 8, 14},
		{"27b on exactly 16GB", "gemma2:27b", linuxPC(16), LevelImpossible, 0, 0},
		{"27b on exactly 16GB Mac", "gemma2:27b", appleSilicon(16), LevelImpossible, 0, 0},
		{"27b on 15.99GB Mac", "gemma2:27b", appleSilicon(15.99), LevelImpossible, 0, 0},
		{"40b on exactly 32GB", "model:40b", linuxPC(32), LevelImpossible, 0, 0},
		{"40b on exactly 32GB Mac", "model:40b", appleSilicon(32), LevelImpossible, 0, 0},
		{"8b on exactly 8GB", "llama3.1:8b", linuxPC(8), LevelDifficult, 4, 8},
		{"14b on exactly 16GB", "phi4", linuxPC(16), LevelDifficult, 8, 14},
		{"34b on exactly 32GB", "model:34b", linuxPC(32), LevelDifficult, 14, 34},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateCompatibility(tt.model, tt.hw)
			if res.Level != tt.want {
				t.Errorf("Level = %v, want %v (params %v)", res.Level, tt.want, res.ParamsB)
			}
			if res.SizeLower != tt.wantLower || res.SizeUpper != tt.wantUpper {
				t.Errorf("range = [%v, %v], want [%v, %v]", res.SizeLower, res.SizeUpper, tt.wantLower, tt.wantUpper)
			}
		})
	}
}

func TestEveryRAMValueHasOneBucket(t *testing.T) {
	for _, arch := range []ArchClass{ArchOther, ArchUnifiedMemory} {
		for _, ram := range []float64{0, 4, 8, 8.5, 16, 24, 32, 64, 100, 128, 512} {
			buckets := map[[2]float64]bool{}
			for _, r := range DefaultRules {
				if r.Arch == arch && r.Matches(arch, ram, r.SizeLower) {
					buckets[[2]float64{r.RAMLower, r.RAMUpper}] = true
				}
			}
			if len(buckets) != 1 {
				t.Errorf("%v with %vGB RAM matches %d buckets, want 1", arch, ram, len(buckets))
			}
		}
	}
}

func TestCompatibilityLevels(t *testing.T) {
	tests := []struct {
		name  string
		model string
		hw    HardwareFacts
		want  Level
	}{
		{"small on 16GB", "llama3.1:8b", linuxPC(16), LevelEasy},
		{"14b on 16GB", "phi4", linuxPC(16), LevelDifficult},
		{"70b on 16GB", "llama3.1:70b", linuxPC(16), LevelImpossible},
		{"70b on 64GB", "llama3.1:70b", linuxPC(64), LevelDifficult},
		{"70b on 96GB", "llama3.1:70b", linuxPC(96), LevelEasy},
		{"405b on 256GB PC", "llama3.1:405b", linuxPC(256), LevelImpossible},
		{"9b on 16GB Mac", "gemma2:9b", appleSilicon(16), LevelEasy},
		{"9b on 15.8GB PC", "gemma2:9b", linuxPC(15.8), LevelDifficult},
		{"maverick on 512GB Mac", "llama4:maverick", appleSilicon(512), LevelDifficult},
		{"deepseek-v3 on 512GB Mac", "deepseek-v3", appleSilicon(512), LevelDifficult},
		{"unknown RAM uses smallest bucket", "llama3.1:8b", linuxPC(0), LevelDifficult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := EvaluateCompatibility(tt.model, tt.hw)
			if res.Level != tt.want {
				t.Errorf("Level = %v, want %v (params %v)", res.Level, tt.want, res.ParamsB)
			}
		})
	}
}

func TestImpossibleHasZeroRange(t *testing.T) {
	res := EvaluateCompatibility("llama3.1:70b", linuxPC(8))

	if res.Level != LevelImpossible {
		t.Fatalf("Level = %v, want Impossible", res.Level)
	}
	if res.SizeLower != 0 || res.SizeUpper != 0 {
		t.Errorf("range = [%v, %v], want zero", res.SizeLower, res.SizeUpper)
	}
	if res.Message != MessageImpossible {
		t.Errorf("Message = %q", res.Message)
	}
	if res.LongWaitMessage != "" {
		t.Errorf("LongWaitMessage = %q, want empty", res.LongWaitMessage)
	}
	if res.ParamsB != 70 {
		t.Errorf("ParamsB = %v, want 70", res.ParamsB)
	}
}

func TestEasyHasNoLongWait(t *testing.T) {
	res := EvaluateCompatibility("phi3:mini", linuxPC(32))
	if res.Level != LevelEasy || res.LongWaitMessage != "" || res.Message != MessageEasy {
		t.Errorf("result = %+v", res)
	}
}

func TestDefaultRulesHaveNoGaps(t *testing.T) {
	// Within each (arch, RAM bucket) the Easy upper bound must equal the
	// Difficult lower bound.
	for i := 0; i+1 < len(DefaultRules); i += 2 {
		easy, diff := DefaultRules[i], DefaultRules[i+1]
		if easy.Level != LevelEasy || diff.Level != LevelDifficult {
			t.Fatalf("rows %d/%d are not an Easy/Difficult pair", i, i+1)
		}
		if easy.Arch != diff.Arch || easy.RAMLower != diff.RAMLower || easy.RAMUpper != diff.RAMUpper {
			t.Errorf("rows %d/%d cover different buckets", i, i+1)
		}
		if easy.SizeUpper != diff.SizeLower {
			t.Errorf("rows %d/%d: gap between %v and %v", i, i+1, easy.SizeUpper, diff.SizeLower)
		}
	}
}

func TestRankModels(t *testing.T) {
	got := RankModels([]string{"llama3.1:70b", "phi3:mini", "llama3.1:8b", "phi4"}, linuxPC(16))

	want := []string{"llama3.1:8b", "phi3:mini", "phi4", "llama3.1:70b"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ModelID != want[i] {
			t.Errorf("rank[%d] = %q, want %q", i, got[i].ModelID, want[i])
		}
	}
}

func TestLevelString(t *testing.T) {
	for level, want := range map[Level]string{
		LevelEasy:       "Easy",
		LevelDifficult:  "Difficult",
		LevelImpossible: "Impossible",
		Level(42):       "Impossible",
	} {
		if got := level.String(); got != want {
			t.Errorf("Level(%d).String() = %q, want %q", level, got, want)
		}
	}
}

func TestLevelTextRoundTrip(t *testing.T) {
	for _, level := range []Level{LevelEasy, LevelDifficult, LevelImpossible} {
		text, err := level.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v): %v", level, err)
		}
		var got Level
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q): %v", text, err)
		}
		if got != level {
			t.Errorf("round trip of %v = %v", level, got)
		}
	}

	var l Level
	if err := l.UnmarshalText([]byte("tricky")); err == nil {
		t.Error("UnmarshalText accepted an unknown level")
	}
}

func TestDetectHardware(t *testing.T) {
	hw := DetectHardware(context.Background())

	if hw.OS != runtime.GOOS || hw.Arch != runtime.GOARCH {
		t.Errorf("DetectHardware() = %s/%s, want %s/%s", hw.OS, hw.Arch, runtime.GOOS, runtime.GOARCH)
	}
	if runtime.GOOS == "linux" && hw.RAMGB <= 0 {
		t.Errorf("RAMGB = %v, want > 0 on linux", hw.RAMGB)
	}
}

func TestUnknownRAMIsReported(t *testing.T) {
	unknown := linuxPC(0)
	if unknown.RAMKnown() {
		t.Error("RAMKnown() = true for zero RAM")
	}
	if got := unknown.String(); !strings.HasPrefix(got, "unknown RAM,") {
		t.Errorf("String() = %q, want unknown RAM prefix", got)
	}

	known := linuxPC(16)
	if !known.RAMKnown() {
		t.Error("RAMKnown() = false for 16GB")
	}
	if got := known.String(); !strings.HasPrefix(got, "16.0 GB RAM,") {
		t.Errorf("String() = %q", got)
	}
}
