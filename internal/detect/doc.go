// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect estimates whether a local model will run acceptably on this
// machine.
//
// The estimate has two steps. EstimateParameterCount derives a parameter
// count (in billions) from the model identifier alone. EvaluateCompatibility
// then looks the (RAM, size) pair up in an ordered rule table for the host's
// architecture class and returns a comfort level.
//
// # Key Types
//
//   - HardwareFacts: total RAM, OS and CPU architecture of the host
//   - CompatibilityRule: one (arch, RAM range, size range, level) row
//   - CompatibilityResult: estimated size, level and user-facing messages
//
// # Usage
//
//	hw := detect.DetectHardware(ctx)
//	res := detect.EvaluateCompatibility("llama3.1:8b", hw)
//	fmt.Println(res.Level, res.Message)
package detect
