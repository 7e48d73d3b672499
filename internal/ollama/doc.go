// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama is the inference gateway: a small client for the local
// Ollama HTTP API.
//
// Only two endpoints are used: POST /api/generate for non-streaming
// completions and GET /api/tags for the installed model list. The endpoint
// and model are read from an injected Settings value on every call, so a
// change made through the configuration store takes effect on the next
// request.
//
// # Key Types
//
//   - Gateway: issues generation and listing requests
//   - Settings: endpoint/model source (config.Store or StaticSettings)
//   - GatewayError: classified failure (unavailable, upstream, malformed, parse)
//   - Monitor: periodic connectivity polling
//
// # Usage
//
//	gw := ollama.NewGateway(store, nil)
//	letter, err := gw.Generate(ctx, prompt)
//	if ollama.IsUnavailable(err) {
//	    // Ollama is not running
//	}
//
// Requests are never retried.
package ollama
