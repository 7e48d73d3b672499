// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package prompt

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingLoader records how many times each template is read.
type countingLoader struct {
	mu        sync.Mutex
	templates map[string]string
	calls     map[string]int
	delay     time.Duration
}

func newCountingLoader(templates map[string]string) *countingLoader {
	return &countingLoader{templates: templates, calls: make(map[string]int)}
}

func (l *countingLoader) Load(name string) (string, error) {
	if l.delay > 0 {
		time.Sleep(l.delay)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls[name]++
	text, ok := l.templates[name]
	if !ok {
		return "", ErrTemplateNotFound
	}
	return text, nil
}

func (l *countingLoader) count(name string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls[name]
}

func TestComposerCachesTemplates(t *testing.T) {
	loader := newCountingLoader(map[string]string{"letter": "Notes: {{notes}}"})
	c := NewComposer(loader, nil)

	for i := 0; i < 3; i++ {
		text, err := c.Template("letter")
		require.NoError(t, err)
		assert.Equal(t, "Notes: {{notes}}", text)
	}
	assert.Equal(t, 1, loader.count("letter"))
	assert.Equal(t, 1, c.Cache().Len())
}

func TestComposerConcurrentFirstLoad(t *testing.T) {
	loader := newCountingLoader(map[string]string{"questions": "{{notes}} {{letter}}"})
	loader.delay = 20 * time.Millisecond
	c := NewComposer(loader, nil)

	var wg sync.WaitGroup
	var failures atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Template("questions"); err != nil {
				failures.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, failures.Load())
	assert.Equal(t, 1, loader.count("questions"))
}

func TestComposerTemplateNotFound(t *testing.T) {
	c := NewComposer(newCountingLoader(nil), nil)

	_, err := c.Template("missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTemplateNotFound))
	assert.True(t, IsNotFound(err))

	var terr *TemplateError
	require.True(t, errors.As(err, &terr))
	assert.Equal(t, "missing", terr.Name)
	assert.Zero(t, c.Cache().Len(), "failed loads must not be cached")
}

func TestComposerInvalidate(t *testing.T) {
	loader := newCountingLoader(map[string]string{"title": "v1"})
	c := NewComposer(loader, nil)

	_, err := c.Template("title")
	require.NoError(t, err)

	loader.mu.Lock()
	loader.templates["title"] = "v2"
	loader.mu.Unlock()

	text, _ := c.Template("title")
	assert.Equal(t, "v1", text, "cached value served until invalidated")

	c.Invalidate("title")
	text, err = c.Template("title")
	require.NoError(t, err)
	assert.Equal(t, "v2", text)
	assert.Equal(t, 2, loader.count("title"))
}

func TestComposerRenderTemplate(t *testing.T) {
	c := NewComposer(EmbeddedLoader{}, nil)

	out, err := c.RenderTemplate(NameLetter, map[string]string{"notes": "R shoulder pain, 3/52"})
	require.NoError(t, err)
	assert.Contains(t, out, "R shoulder pain, 3/52")
	assert.NotContains(t, out, "{{notes}}")
}

func TestBuiltinTemplatesHavePlaceholders(t *testing.T) {
	want := map[string][]string{
		NameLetter:       {"notes"},
		NameQuestions:    {"notes", "letter"},
		NameAnswers:      {"prompt", "answers"},
		NameConversation: {"prompt", "history"},
		NameTitle:        {"notes", "letter"},
		NameEvaluation:   {"notes", "reference", "letter"},
		NameImprovement:  {"evaluations"},
	}
	for name, placeholders := range want {
		text, err := EmbeddedLoader{}.Load(name)
		require.NoError(t, err, name)
		assert.ElementsMatch(t, placeholders, Placeholders(text), name)
	}
	assert.Len(t, BuiltinNames(), len(want))
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "letter.md"), []byte("md {{notes}}"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "title.toml"),
		[]byte("description = \"short\"\ntemplate = \"\"\"\nT {{notes}}\"\"\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.toml"), []byte("description = 1\n"), 0644))

	l := DirLoader{Dir: dir}

	text, err := l.Load("letter")
	require.NoError(t, err)
	assert.Equal(t, "md {{notes}}", text)

	text, err = l.Load("title")
	require.NoError(t, err)
	assert.Equal(t, "T {{notes}}", text)

	_, err = l.Load("bad")
	assert.Error(t, err)
	assert.False(t, IsNotFound(err))

	_, err = l.Load("questions")
	assert.True(t, IsNotFound(err))

	_, err = l.Load("../letter")
	assert.True(t, IsNotFound(err))
}

func TestChainLoaderPrefersDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "letter.txt"), []byte("custom {{notes}}"), 0644))

	l := DefaultLoader(dir)

	text, err := l.Load("letter")
	require.NoError(t, err)
	assert.Equal(t, "custom {{notes}}", text)

	text, err = l.Load("questions")
	require.NoError(t, err)
	assert.Contains(t, text, "QUESTIONS:")
}
