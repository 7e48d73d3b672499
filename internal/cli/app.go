// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/config"
	"github.com/jeranaias/letterscribe/internal/conversation"
	"github.com/jeranaias/letterscribe/internal/logging"
	"github.com/jeranaias/letterscribe/internal/model"
	"github.com/jeranaias/letterscribe/internal/ollama"
	"github.com/jeranaias/letterscribe/internal/prompt"
	"github.com/jeranaias/letterscribe/internal/storage"
)

// =============================================================================
// APP
// =============================================================================

// App carries global flags and the lazily built components shared by every
// command. Components are created on first use so that commands like
// "config show" never open the session store.
type App struct {
	ConfigPath string
	Verbose    bool

	out    io.Writer
	errOut io.Writer

	store    *config.Store
	logger   *zap.Logger
	sessions storage.Store
	gateway  *ollama.Gateway
	composer *prompt.Composer
	watcher  *prompt.Watcher
}

// NewApp creates an App writing to stdout and stderr.
func NewApp() *App {
	return &App{out: os.Stdout, errOut: os.Stderr}
}

// Config loads the configuration store.
func (a *App) Config() (*config.Store, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := config.OpenStore(a.ConfigPath)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// Logger builds the root logger from the logging section. --verbose forces
// debug level with the development encoder.
func (a *App) Logger() (*zap.Logger, error) {
	if a.logger != nil {
		return a.logger, nil
	}
	store, err := a.Config()
	if err != nil {
		return nil, err
	}
	cfg := store.Config()
	opts := logging.Options{
		Level:       cfg.Logging.Level,
		File:        cfg.Logging.File,
		Development: cfg.Logging.Development,
	}
	if a.Verbose {
		opts.Level = "debug"
		opts.Development = true
	}
	logger, err := logging.New(opts)
	if err != nil {
		return nil, err
	}
	a.logger = logger
	return logger, nil
}

// Sessions opens the configured session store.
func (a *App) Sessions() (storage.Store, error) {
	if a.sessions != nil {
		return a.sessions, nil
	}
	store, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	sessions, err := storage.Open(store.Config().Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	a.sessions = sessions
	return sessions, nil
}

// Gateway returns the Ollama gateway. It reads endpoint and model from the
// config store, so set-endpoint and set-model apply to the next request.
func (a *App) Gateway() (*ollama.Gateway, error) {
	if a.gateway != nil {
		return a.gateway, nil
	}
	store, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	cfg := store.Config()
	a.gateway = ollama.NewGateway(store, &ollama.GatewayConfig{
		Timeout: cfg.RequestTimeout(),
		Logger:  logger,
	})
	return a.gateway, nil
}

// Composer returns the prompt composer. When prompts.watch is set, edits in
// the prompt directory invalidate the cache while the process runs.
func (a *App) Composer() (*prompt.Composer, error) {
	if a.composer != nil {
		return a.composer, nil
	}
	store, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	cfg := store.Config()
	a.composer = prompt.NewComposer(prompt.DefaultLoader(cfg.Prompts.Dir), logger)

	if cfg.Prompts.Watch && cfg.Prompts.Dir != "" {
		if _, err := os.Stat(cfg.Prompts.Dir); err == nil {
			w, err := prompt.NewWatcher(a.composer, cfg.Prompts.Dir, 0, logger)
			if err == nil {
				err = w.Start()
			}
			if err != nil {
				logger.Warn("prompt watcher disabled", zap.Error(err))
			} else {
				a.watcher = w
			}
		}
	}
	return a.composer, nil
}

// NewOrchestrator builds an orchestrator for sess (a fresh session when nil)
// saving into the session store. Prompt file, autosave delay and title width
// come from the configuration; the other options are passed through.
func (a *App) NewOrchestrator(sess *model.Session, opts conversation.Options) (*conversation.Orchestrator, error) {
	store, err := a.Config()
	if err != nil {
		return nil, err
	}
	logger, err := a.Logger()
	if err != nil {
		return nil, err
	}
	sessions, err := a.Sessions()
	if err != nil {
		return nil, err
	}
	gw, err := a.Gateway()
	if err != nil {
		return nil, err
	}
	composer, err := a.Composer()
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = model.NewSession(store.Model())
	}

	cfg := store.Config()
	opts.PromptFile = store.PromptFile()
	opts.AutosaveDelay = cfg.AutosaveDelay()
	opts.TitleMaxWidth = cfg.Session.TitleMaxWidth
	return conversation.New(sess, gw, composer, sessions.Save, opts, logger), nil
}

// Close releases every component that was opened. It is safe to call twice.
func (a *App) Close() error {
	var errs []error
	if a.watcher != nil {
		errs = append(errs, a.watcher.Close())
		a.watcher = nil
	}
	if a.sessions != nil {
		errs = append(errs, a.sessions.Close())
		a.sessions = nil
	}
	if a.logger != nil {
		// Sync fails on stderr for some terminals; nothing to act on.
		_ = a.logger.Sync()
	}
	return errors.Join(errs...)
}

// checkConnectivity prints a warning when Ollama is unreachable.
func (a *App) checkConnectivity(ctx context.Context) bool {
	gw, err := a.Gateway()
	if err != nil {
		return false
	}
	if gw.CheckConnectivity(ctx) {
		return true
	}
	fmt.Fprintln(a.errOut, WarningStyle.Render("Warning: ")+
		ollama.UserMessage(&ollama.GatewayError{Kind: ollama.KindUnavailable}))
	return false
}
