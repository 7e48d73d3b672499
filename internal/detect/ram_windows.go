// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build windows

package detect

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

func totalRAMBytes(ctx context.Context) (uint64, error) {
	cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
		`(Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory`)
	output, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("powershell: %w", err)
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse TotalPhysicalMemory: %w", err)
	}
	return n, nil
}
