// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/letterscribe/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete letterscribe configuration.
type Config struct {
	// Local inference endpoint and prompt selection
	Local LocalConfig `toml:"local"`

	// Prompt template location
	Prompts PromptsConfig `toml:"prompts"`

	// Session persistence
	Storage StorageConfig `toml:"storage"`

	// Session behaviour (autosave, titles, health polling)
	Session SessionConfig `toml:"session"`

	// Logging output
	Logging LoggingConfig `toml:"logging"`
}

// LocalConfig contains the local Ollama configuration.
type LocalConfig struct {
	// OllamaURL is the URL of the Ollama server
	OllamaURL string `toml:"ollama_url"`
	// OllamaModel is the model used for every generation request
	OllamaModel string `toml:"ollama_model"`
	// PromptFile names the main letter template (without extension)
	PromptFile string `toml:"prompt_file"`
	// RequestTimeoutSecs bounds a single generation request (0 = no limit)
	RequestTimeoutSecs int `toml:"request_timeout_secs"`
}

// PromptsConfig locates prompt templates.
type PromptsConfig struct {
	// Dir is searched before the built-in templates
	Dir string `toml:"dir"`
	// Watch invalidates cached templates when files in Dir change
	Watch bool `toml:"watch"`
}

// StorageConfig selects the session store.
type StorageConfig struct {
	// Backend is "json" (one file per session) or "sqlite"
	Backend string `toml:"backend"`
	// Dir holds session files or the sqlite database
	Dir string `toml:"dir"`
}

// SessionConfig tunes the conversation core.
type SessionConfig struct {
	// AutosaveDelayMs is the debounce delay before a dirty session is written
	AutosaveDelayMs int `toml:"autosave_delay_ms"`
	// TitleMaxWidth is the display-column budget for generated titles
	TitleMaxWidth int `toml:"title_max_width"`
	// ConnectivityPollSecs is the health polling interval used by the chat REPL
	ConnectivityPollSecs int `toml:"connectivity_poll_secs"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level       string `toml:"level"`
	File        string `toml:"file"`
	Development bool   `toml:"development"`
}

// Backends accepted by StorageConfig.Backend.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Default returns a Config with sensible default values.
// Data directories are left empty and resolved by fillDefaults so that
// Default never touches the filesystem.
func Default() *Config {
	return &Config{
		Local: LocalConfig{
			OllamaURL:          "http://127.0.0.1:11434",
			OllamaModel:        "llama3.1:8b",
			PromptFile:         "letter",
			RequestTimeoutSecs: 600,
		},
		Prompts: PromptsConfig{
			Watch: true,
		},
		Storage: StorageConfig{
			Backend: BackendJSON,
		},
		Session: SessionConfig{
			AutosaveDelayMs:      3000,
			TitleMaxWidth:        50,
			ConnectivityPollSecs: 15,
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
	}
}

// AutosaveDelay returns the autosave debounce delay.
func (c Config) AutosaveDelay() time.Duration {
	return time.Duration(c.Session.AutosaveDelayMs) * time.Millisecond
}

// RequestTimeout returns the generation timeout (0 = none).
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Local.RequestTimeoutSecs) * time.Second
}

// ConnectivityPoll returns the health polling interval.
func (c Config) ConnectivityPoll() time.Duration {
	return time.Duration(c.Session.ConnectivityPollSecs) * time.Second
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// Dir returns the letterscribe configuration directory path.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".letterscribe"), nil
}

// DefaultPath returns the path to the TOML config file.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOAD
// =============================================================================

// Load reads the configuration at path (DefaultPath when empty).
// A missing file is not an error: defaults are used. A .env file in the
// working directory and LETTERSCRIBE_* variables are applied on top.
func Load(path string) (*Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg := Default()
	if _, err := os.Stat(path); err == nil {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	// .env is optional; a missing file is the common case.
	_ = godotenv.Load()
	cfg.ApplyEnvOverrides()

	if err := fillDefaults(cfg, filepath.Dir(path)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes the TOML file at path into cfg.
func LoadTOML(cfg *Config, path string) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	return nil
}

// fillDefaults fills in any missing values with defaults. baseDir anchors
// the data directories next to the config file.
func fillDefaults(cfg *Config, baseDir string) error {
	defaults := Default()

	if cfg.Local.OllamaURL == "" {
		cfg.Local.OllamaURL = defaults.Local.OllamaURL
	}
	cfg.Local.OllamaURL = strings.TrimRight(cfg.Local.OllamaURL, "/")
	if cfg.Local.OllamaModel == "" {
		cfg.Local.OllamaModel = defaults.Local.OllamaModel
	}
	if cfg.Local.PromptFile == "" {
		cfg.Local.PromptFile = defaults.Local.PromptFile
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = defaults.Storage.Backend
	}
	if cfg.Storage.Dir == "" {
		cfg.Storage.Dir = filepath.Join(baseDir, "sessions")
	}
	if cfg.Prompts.Dir == "" {
		cfg.Prompts.Dir = filepath.Join(baseDir, "prompts")
	}

	if cfg.Session.AutosaveDelayMs == 0 {
		cfg.Session.AutosaveDelayMs = defaults.Session.AutosaveDelayMs
	}
	if cfg.Session.TitleMaxWidth == 0 {
		cfg.Session.TitleMaxWidth = defaults.Session.TitleMaxWidth
	}
	if cfg.Session.ConnectivityPollSecs == 0 {
		cfg.Session.ConnectivityPollSecs = defaults.Session.ConnectivityPollSecs
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - LETTERSCRIBE_OLLAMA_URL: overrides local.ollama_url
//   - LETTERSCRIBE_MODEL: overrides local.ollama_model
//   - LETTERSCRIBE_PROMPT_FILE: overrides local.prompt_file
//   - LETTERSCRIBE_DATA_DIR: overrides storage.dir
//   - LETTERSCRIBE_STORAGE: overrides storage.backend
//   - LETTERSCRIBE_LOG_LEVEL: overrides logging.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("LETTERSCRIBE_OLLAMA_URL"); v != "" {
		c.Local.OllamaURL = v
	}
	if v := os.Getenv("LETTERSCRIBE_MODEL"); v != "" {
		c.Local.OllamaModel = v
	}
	if v := os.Getenv("LETTERSCRIBE_PROMPT_FILE"); v != "" {
		c.Local.PromptFile = v
	}
	if v := os.Getenv("LETTERSCRIBE_DATA_DIR"); v != "" {
		c.Storage.Dir = v
	}
	if v := os.Getenv("LETTERSCRIBE_STORAGE"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("LETTERSCRIBE_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

// =============================================================================
// SAVE
// =============================================================================

// SaveTOML writes cfg to path with owner-only permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf bytes.Buffer
	buf.WriteString("# letterscribe configuration file\n")
	buf.WriteString("# Generated by letterscribe - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := ValidateEndpoint(c.Local.OllamaURL); err != nil {
		errs = append(errs, ValidationError{Field: "local.ollama_url", Message: err.Error()})
	}
	if strings.TrimSpace(c.Local.OllamaModel) == "" {
		errs = append(errs, ValidationError{Field: "local.ollama_model", Message: "must not be empty"})
	}
	if strings.ContainsAny(c.Local.PromptFile, `/\`) {
		errs = append(errs, ValidationError{Field: "local.prompt_file", Message: "must be a template name, not a path"})
	}
	if c.Local.RequestTimeoutSecs < 0 {
		errs = append(errs, ValidationError{Field: "local.request_timeout_secs", Message: "must be non-negative"})
	}

	switch strings.ToLower(c.Storage.Backend) {
	case BackendJSON, BackendSQLite:
	default:
		errs = append(errs, ValidationError{
			Field:   "storage.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: json, sqlite", c.Storage.Backend),
		})
	}

	if c.Session.AutosaveDelayMs < 0 {
		errs = append(errs, ValidationError{Field: "session.autosave_delay_ms", Message: "must be non-negative"})
	}
	if c.Session.TitleMaxWidth < 10 {
		errs = append(errs, ValidationError{
			Field:   "session.title_max_width",
			Message: fmt.Sprintf("must be at least 10, got %d", c.Session.TitleMaxWidth),
		})
	}
	if c.Session.ConnectivityPollSecs < 0 {
		errs = append(errs, ValidationError{Field: "session.connectivity_poll_secs", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateEndpoint checks that raw is an absolute http(s) URL.
func ValidateEndpoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid URL '%s': scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid URL '%s': missing host", raw)
	}
	return nil
}
