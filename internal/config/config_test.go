// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Local.OllamaURL != "http://127.0.0.1:11434" {
		t.Errorf("Local.OllamaURL = %q, want %q", cfg.Local.OllamaURL, "http://127.0.0.1:11434")
	}
	if cfg.Local.PromptFile != "letter" {
		t.Errorf("Local.PromptFile = %q, want %q", cfg.Local.PromptFile, "letter")
	}
	if cfg.Storage.Backend != BackendJSON {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendJSON)
	}
	if cfg.Session.TitleMaxWidth != 50 {
		t.Errorf("Session.TitleMaxWidth = %d, want 50", cfg.Session.TitleMaxWidth)
	}
	if got := cfg.AutosaveDelay().Seconds(); got != 3 {
		t.Errorf("AutosaveDelay() = %vs, want 3s", got)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Local.OllamaModel != Default().Local.OllamaModel {
		t.Errorf("Local.OllamaModel = %q, want default", cfg.Local.OllamaModel)
	}
	wantDir := filepath.Join(filepath.Dir(path), "sessions")
	if cfg.Storage.Dir != wantDir {
		t.Errorf("Storage.Dir = %q, want %q", cfg.Storage.Dir, wantDir)
	}
}

func TestLoadTOML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[local]
ollama_url = "http://gpu-box:11434/"
ollama_model = "mistral:7b"
prompt_file = "letter_v2"

[storage]
backend = "sqlite"

[session]
autosave_delay_ms = 500
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Local.OllamaURL != "http://gpu-box:11434" {
		t.Errorf("Local.OllamaURL = %q, want trailing slash trimmed", cfg.Local.OllamaURL)
	}
	if cfg.Local.OllamaModel != "mistral:7b" {
		t.Errorf("Local.OllamaModel = %q, want %q", cfg.Local.OllamaModel, "mistral:7b")
	}
	if cfg.Local.PromptFile != "letter_v2" {
		t.Errorf("Local.PromptFile = %q, want %q", cfg.Local.PromptFile, "letter_v2")
	}
	if cfg.Storage.Backend != BackendSQLite {
		t.Errorf("Storage.Backend = %q, want %q", cfg.Storage.Backend, BackendSQLite)
	}
	if cfg.Session.AutosaveDelayMs != 500 {
		t.Errorf("Session.AutosaveDelayMs = %d, want 500", cfg.Session.AutosaveDelayMs)
	}
	// Unset values keep defaults.
	if cfg.Session.TitleMaxWidth != 50 {
		t.Errorf("Session.TitleMaxWidth = %d, want 50", cfg.Session.TitleMaxWidth)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[local]\nollama_modle = \"x\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "local.ollama_modle") {
		t.Errorf("Load() error = %v, want unknown key error", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LETTERSCRIBE_OLLAMA_URL", "http://10.0.0.2:11434")
	t.Setenv("LETTERSCRIBE_MODEL", "qwen2.5:14b")
	t.Setenv("LETTERSCRIBE_PROMPT_FILE", "short")
	t.Setenv("LETTERSCRIBE_DATA_DIR", "/tmp/ls")
	t.Setenv("LETTERSCRIBE_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"OllamaURL", cfg.Local.OllamaURL, "http://10.0.0.2:11434"},
		{"OllamaModel", cfg.Local.OllamaModel, "qwen2.5:14b"},
		{"PromptFile", cfg.Local.PromptFile, "short"},
		{"Storage.Dir", cfg.Storage.Dir, "/tmp/ls"},
		{"Logging.Level", cfg.Logging.Level, "debug"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{"valid default", func(c *Config) {}, "", false},
		{"bad scheme", func(c *Config) { c.Local.OllamaURL = "ftp://host" }, "local.ollama_url", true},
		{"missing host", func(c *Config) { c.Local.OllamaURL = "http://" }, "local.ollama_url", true},
		{"empty model", func(c *Config) { c.Local.OllamaModel = " " }, "local.ollama_model", true},
		{"prompt path", func(c *Config) { c.Local.PromptFile = "../etc/passwd" }, "local.prompt_file", true},
		{"bad backend", func(c *Config) { c.Storage.Backend = "postgres" }, "storage.backend", true},
		{"narrow title", func(c *Config) { c.Session.TitleMaxWidth = 3 }, "session.title_max_width", true},
		{"negative autosave", func(c *Config) { c.Session.AutosaveDelayMs = -1 }, "session.autosave_delay_ms", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("Validate() error type = %T, want ValidateErrors", err)
			}
			if verrs[0].Field != tt.field {
				t.Errorf("Field = %q, want %q", verrs[0].Field, tt.field)
			}
		})
	}
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	cfg := Default()
	cfg.Local.OllamaModel = "gemma2:9b"
	cfg.Storage.Dir = "/data/sessions"

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("file mode = %o, want 0600", perm)
	}

	loaded := Default()
	if err := LoadTOML(loaded, path); err != nil {
		t.Fatalf("LoadTOML() error = %v", err)
	}
	if loaded.Local.OllamaModel != "gemma2:9b" {
		t.Errorf("Local.OllamaModel = %q, want %q", loaded.Local.OllamaModel, "gemma2:9b")
	}
	if loaded.Storage.Dir != "/data/sessions" {
		t.Errorf("Storage.Dir = %q, want %q", loaded.Storage.Dir, "/data/sessions")
	}
}

func TestStorePersistsChanges(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	store := NewStore(Default(), path)

	if err := store.SetModel("llama3.2:3b"); err != nil {
		t.Fatalf("SetModel() error = %v", err)
	}
	if err := store.SetEndpoint("http://localhost:9999/"); err != nil {
		t.Fatalf("SetEndpoint() error = %v", err)
	}
	if err := store.SetPromptFile("letter_brief"); err != nil {
		t.Fatalf("SetPromptFile() error = %v", err)
	}

	reopened, err := OpenStore(path)
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	if got := reopened.Model(); got != "llama3.2:3b" {
		t.Errorf("Model() = %q, want %q", got, "llama3.2:3b")
	}
	if got := reopened.Endpoint(); got != "http://localhost:9999" {
		t.Errorf("Endpoint() = %q, want %q", got, "http://localhost:9999")
	}
	if got := reopened.PromptFile(); got != "letter_brief" {
		t.Errorf("PromptFile() = %q, want %q", got, "letter_brief")
	}
}

func TestStoreSnapshotDurations(t *testing.T) {
	cfg := Default()
	cfg.Session.AutosaveDelayMs = 250
	cfg.Session.ConnectivityPollSecs = 7
	cfg.Local.RequestTimeoutSecs = 90
	store := NewStore(cfg, "")

	// The durations are read straight off the snapshot returned by Config.
	if got := store.Config().AutosaveDelay(); got != 250*time.Millisecond {
		t.Errorf("AutosaveDelay() = %v, want 250ms", got)
	}
	if got := store.Config().ConnectivityPoll(); got != 7*time.Second {
		t.Errorf("ConnectivityPoll() = %v, want 7s", got)
	}
	if got := store.Config().RequestTimeout(); got != 90*time.Second {
		t.Errorf("RequestTimeout() = %v, want 90s", got)
	}
}

func TestStoreRejectsInvalid(t *testing.T) {
	store := NewStore(nil, "")

	if err := store.SetEndpoint("not a url"); err == nil {
		t.Error("SetEndpoint(invalid) should fail")
	}
	if err := store.SetModel(""); err == nil {
		t.Error("SetModel(\"\") should fail")
	}
	if err := store.SetPromptFile("a/b"); err == nil {
		t.Error("SetPromptFile(path) should fail")
	}
	if got := store.Endpoint(); got != Default().Local.OllamaURL {
		t.Errorf("Endpoint() = %q, want unchanged default", got)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	store := NewStore(Default(), "")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = store.SetModel("model-a")
		}()
		go func() {
			defer wg.Done()
			_ = store.Model()
			_ = store.Config()
		}()
	}
	wg.Wait()

	if got := store.Model(); got != "model-a" {
		t.Errorf("Model() = %q, want %q", got, "model-a")
	}
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"LETTERSCRIBE_OLLAMA_URL", "LETTERSCRIBE_MODEL", "LETTERSCRIBE_PROMPT_FILE",
		"LETTERSCRIBE_DATA_DIR", "LETTERSCRIBE_STORAGE", "LETTERSCRIBE_LOG_LEVEL",
	} {
		t.Setenv(k, "")
	}
}
