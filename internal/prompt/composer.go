// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jeranaias/letterscribe/internal/logging"
)

// Template names used by the conversation core.
const (
	NameLetter       = "letter"
	NameQuestions    = "questions"
	NameAnswers      = "answers"
	NameConversation = "conversation"
	NameTitle        = "title"
	NameEvaluation   = "evaluation"
	NameImprovement  = "improvement"
)

// Composer resolves templates through a Loader, caches them, and renders
// placeholders. It is safe for concurrent use.
type Composer struct {
	loader Loader
	cache  *Cache
	group  singleflight.Group
	logger *zap.Logger
}

// NewComposer creates a composer over loader. A nil logger disables logging.
func NewComposer(loader Loader, logger *zap.Logger) *Composer {
	return &Composer{
		loader: loader,
		cache:  NewCache(),
		logger: logging.OrNop(logger).Named(logging.ComponentPrompt),
	}
}

// Cache exposes the composer's template cache.
func (c *Composer) Cache() *Cache {
	return c.cache
}

// Template returns the text of the named template, loading it on first use.
func (c *Composer) Template(name string) (string, error) {
	if text, ok := c.cache.Get(name); ok {
		return text, nil
	}

	v, err, _ := c.group.Do(name, func() (interface{}, error) {
		// A concurrent caller may have populated the cache while we waited.
		if text, ok := c.cache.Get(name); ok {
			return text, nil
		}
		text, err := c.loader.Load(name)
		if err != nil {
			return "", err
		}
		c.cache.Put(name, text)
		c.logger.Debug("template loaded", zap.String("name", name), zap.Int("bytes", len(text)))
		return text, nil
	})
	if err != nil {
		return "", &TemplateError{Name: name, Err: err}
	}
	return v.(string), nil
}

// RenderTemplate loads the named template and renders subs into it.
func (c *Composer) RenderTemplate(name string, subs map[string]string) (string, error) {
	text, err := c.Template(name)
	if err != nil {
		return "", err
	}
	return Render(text, subs), nil
}

// Invalidate drops name from the cache so the next use reloads it.
func (c *Composer) Invalidate(name string) {
	if c.cache.Delete(name) {
		c.logger.Info("template invalidated", zap.String("name", name))
	}
}

// InvalidateAll empties the cache.
func (c *Composer) InvalidateAll() {
	c.cache.Clear()
}
