// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and persistence for
// letterscribe.
//
// The configuration is a TOML file (default ~/.letterscribe/config.toml)
// layered over built-in defaults, a .env file in the working directory, and
// LETTERSCRIBE_* environment variables.
//
// # Key Types
//
//   - Config: the on-disk configuration
//   - Store: an explicitly constructed, injectable holder for a Config that
//     persists every change back to its file
//
// # Usage
//
//	store, err := config.OpenStore("")
//	if err != nil {
//	    return err
//	}
//	gateway := ollama.NewGateway(store)
//	_ = store.SetModel("llama3.1:8b") // written to config.toml
//
// There is no package-level singleton: callers build one Store at startup
// and pass it to the gateway and the orchestrator.
package config
