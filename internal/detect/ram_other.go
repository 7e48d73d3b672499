// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux && !darwin && !windows

package detect

import (
	"context"
	"errors"
)

func totalRAMBytes(ctx context.Context) (uint64, error) {
	return 0, errors.New("RAM detection not supported on this platform")
}
