// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) (*Gateway, *StaticSettings) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	settings := NewStaticSettings(srv.URL, "llama3.1:8b")
	return NewGateway(settings, nil), settings
}

// =============================================================================
// GENERATE TESTS
// =============================================================================

func TestGenerateSuccess(t *testing.T) {
	var got GenerateRequest
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","response":"Dear Dr Smith,","done":true}`))
	})

	text, err := gw.Generate(context.Background(), "write a letter")
	require.NoError(t, err)
	assert.Equal(t, "Dear Dr Smith,", text)
	assert.Equal(t, GenerateRequest{Model: "llama3.1:8b", Prompt: "write a letter", Stream: false}, got)
}

func TestGenerateEmptyResponseFieldIsValid(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":""}`))
	})

	text, err := gw.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestGenerateErrorKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		kind     ErrorKind
		sentinel error
		contains string
	}{
		{"upstream with error field", 404, `{"error":"model 'x' not found"}`, KindUpstream, ErrUpstreamError, "model 'x' not found"},
		{"upstream plain body", 500, `oops`, KindUpstream, ErrUpstreamError, "500"},
		{"empty body", 200, ``, KindMalformed, ErrMalformedResponse, "empty"},
		{"not json", 200, `<html>`, KindMalformed, ErrMalformedResponse, "not a JSON object"},
		{"json array", 200, `["a"]`, KindMalformed, ErrMalformedResponse, "not a JSON object"},
		{"missing field", 200, `{"model":"m","done":true}`, KindMalformed, ErrMalformedResponse, "response"},
		{"wrong field type", 200, `{"response":42}`, KindParse, ErrParseError, "unexpected response shape"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := gw.Generate(context.Background(), "p")
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.sentinel), "errors.Is(%v, %v)", err, tt.sentinel)
			assert.Equal(t, tt.kind, KindOf(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestGenerateUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	gw := NewGateway(NewStaticSettings(url, "m"), nil)
	_, err := gw.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.True(t, IsUnavailable(err))
	assert.False(t, IsUpstream(err))
	assert.Contains(t, UserMessage(err), "Could not reach Ollama")
}

func TestGenerateNoRetries(t *testing.T) {
	var calls atomic.Int32
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := gw.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSettingsChangesApplyToNextRequest(t *testing.T) {
	var model atomic.Value
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		model.Store(req.Model)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	})

	require.NoError(t, gw.SetModel("mistral:7b"))
	_, err := gw.Generate(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, "mistral:7b", model.Load())
	assert.Equal(t, "mistral:7b", gw.Model())

	assert.Error(t, gw.SetModel("  "))
}

// =============================================================================
// MODEL LIST TESTS
// =============================================================================

func TestListModels(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tags", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.1:8b","size":4920000000},{"name":"phi3:mini"}]}`))
	})

	names, err := gw.ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3.1:8b", "phi3:mini"}, names)
}

func TestListModelsMalformed(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	_, err := gw.ListModels(context.Background())
	assert.True(t, errors.Is(err, ErrMalformedResponse))
}

func TestCheckConnectivity(t *testing.T) {
	ok, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	})
	assert.True(t, ok.CheckConnectivity(context.Background()))

	failing, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	assert.False(t, failing.CheckConnectivity(context.Background()))
}

func TestCheckConnectivityHonoursContext(t *testing.T) {
	release := make(chan struct{})
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, gw.CheckConnectivity(ctx))
	assert.Less(t, time.Since(start), ConnectivityTimeout)
}
