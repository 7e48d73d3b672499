// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// detectTimeout bounds platform probes that shell out.
const detectTimeout = 5 * time.Second

// ArchClass groups hosts by memory architecture.
type ArchClass int

const (
	// ArchOther covers discrete-memory machines (x86 PCs, most Linux boxes).
	ArchOther ArchClass = iota
	// ArchUnifiedMemory is Apple Silicon, where the GPU shares system RAM.
	ArchUnifiedMemory
)

// String returns the class name.
func (a ArchClass) String() string {
	if a == ArchUnifiedMemory {
		return "unified-memory"
	}
	return "other"
}

// HardwareFacts describes the host.
type HardwareFacts struct {
	RAMGB float64 `json:"ram_gb"`
	OS    string  `json:"os"`
	Arch  string  `json:"arch"`
}

// ArchClass derives the memory architecture class.
func (h HardwareFacts) ArchClass() ArchClass {
	if h.OS == "darwin" && h.Arch == "arm64" {
		return ArchUnifiedMemory
	}
	return ArchOther
}

// RAMKnown reports whether total RAM was detected.
func (h HardwareFacts) RAMKnown() bool {
	return h.RAMGB > 0
}

// String returns a one-line description.
func (h HardwareFacts) String() string {
	ram := "unknown RAM"
	if h.RAMKnown() {
		ram = fmt.Sprintf("%.1f GB RAM", h.RAMGB)
	}
	return fmt.Sprintf("%s, %s/%s (%s)", ram, h.OS, h.Arch, h.ArchClass())
}

// DetectHardware probes total system RAM. When the probe fails RAMGB is zero
// and RAMKnown reports false; compatibility then falls in the smallest RAM
// bucket, so estimates err towards "too large" rather than "runs easily".
// Callers should tell the user the estimate is based on unknown RAM.
func DetectHardware(ctx context.Context) HardwareFacts {
	ctx, cancel := context.WithTimeout(ctx, detectTimeout)
	defer cancel()

	facts := HardwareFacts{OS: runtime.GOOS, Arch: runtime.GOARCH}
	if bytes, err := totalRAMBytes(ctx); err == nil {
		facts.RAMGB = float64(bytes) / (1 << 30)
	}
	return facts
}
