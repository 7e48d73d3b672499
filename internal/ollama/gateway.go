// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/jeranaias/letterscribe/internal/logging"
)

// ConnectivityTimeout bounds CheckConnectivity regardless of the caller's context.
const ConnectivityTimeout = 5 * time.Second

// =============================================================================
// GATEWAY CONFIGURATION
// =============================================================================

// GatewayConfig holds optional gateway settings.
type GatewayConfig struct {
	// Timeout bounds each request (0 = rely on the context only).
	// Local generation can take minutes on slow hardware.
	Timeout time.Duration

	// Logger receives request logs. Nil disables logging.
	Logger *zap.Logger
}

// =============================================================================
// GATEWAY
// =============================================================================

// Gateway sends requests to the Ollama server named by its Settings.
//
// The Gateway is safe for concurrent use.
type Gateway struct {
	settings Settings
	client   *resty.Client
	logger   *zap.Logger
}

// NewGateway creates a gateway reading endpoint and model from settings.
func NewGateway(settings Settings, cfg *GatewayConfig) *Gateway {
	if cfg == nil {
		cfg = &GatewayConfig{}
	}
	logger := logging.OrNop(cfg.Logger).Named(logging.ComponentGateway)

	client := resty.New()
	client.SetHeader("Accept", "application/json")
	client.SetLogger(logger.Sugar())
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}

	return &Gateway{
		settings: settings,
		client:   client,
		logger:   logger,
	}
}

// Endpoint returns the current endpoint.
func (g *Gateway) Endpoint() string {
	return g.settings.Endpoint()
}

// Model returns the current model identifier.
func (g *Gateway) Model() string {
	return g.settings.Model()
}

// SetModel changes the model used by subsequent requests.
func (g *Gateway) SetModel(model string) error {
	if err := g.settings.SetModel(model); err != nil {
		return fmt.Errorf("set model: %w", err)
	}
	g.logger.Info("model changed", zap.String("model", model))
	return nil
}

// SetEndpoint changes the server used by subsequent requests.
func (g *Gateway) SetEndpoint(endpoint string) error {
	if err := g.settings.SetEndpoint(endpoint); err != nil {
		return fmt.Errorf("set endpoint: %w", err)
	}
	g.logger.Info("endpoint changed", zap.String("endpoint", endpoint))
	return nil
}

// =============================================================================
// GENERATION
// =============================================================================

// Generate sends prompt to the configured model and returns the response text.
func (g *Gateway) Generate(ctx context.Context, prompt string) (string, error) {
	const op = "generate"
	model := g.settings.Model()
	start := time.Now()

	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(GenerateRequest{Model: model, Prompt: prompt, Stream: false}).
		Post(g.url("/api/generate"))
	if err != nil {
		g.logger.Warn("generate failed", zap.String("model", model), zap.Error(err))
		return "", &GatewayError{Kind: KindUnavailable, Op: op, Message: "request failed", Cause: err}
	}
	if err := checkStatus(op, resp); err != nil {
		g.logger.Warn("generate rejected", zap.String("model", model), zap.Int("status", resp.StatusCode()))
		return "", err
	}

	var result GenerateResponse
	if err := decodeObject(op, resp.Body(), "response", &result); err != nil {
		g.logger.Warn("generate response unreadable", zap.String("model", model), zap.Error(err))
		return "", err
	}

	g.logger.Debug("generate complete",
		zap.String("model", model),
		zap.Int("prompt_bytes", len(prompt)),
		zap.Int("response_bytes", len(result.Response)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result.Response, nil
}

// =============================================================================
// MODEL OPERATIONS
// =============================================================================

// ListModels returns the names of the installed models, in server order.
func (g *Gateway) ListModels(ctx context.Context) ([]string, error) {
	infos, err := g.ListModelInfo(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(infos))
	for _, m := range infos {
		names = append(names, m.Name)
	}
	return names, nil
}

// ListModelInfo returns the installed models with their sizes.
func (g *Gateway) ListModelInfo(ctx context.Context) ([]ModelInfo, error) {
	const op = "list models"

	resp, err := g.client.R().
		SetContext(ctx).
		Get(g.url("/api/tags"))
	if err != nil {
		return nil, &GatewayError{Kind: KindUnavailable, Op: op, Message: "request failed", Cause: err}
	}
	if err := checkStatus(op, resp); err != nil {
		return nil, err
	}

	var result ListModelsResponse
	if err := decodeObject(op, resp.Body(), "models", &result); err != nil {
		return nil, err
	}
	return result.Models, nil
}

// CheckConnectivity reports whether the server answers a model listing
// within ConnectivityTimeout. It never returns an error.
func (g *Gateway) CheckConnectivity(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ConnectivityTimeout)
	defer cancel()

	_, err := g.ListModels(ctx)
	if err != nil {
		g.logger.Debug("connectivity check failed", zap.String("endpoint", g.settings.Endpoint()), zap.Error(err))
		return false
	}
	return true
}

// =============================================================================
// HELPERS
// =============================================================================

func (g *Gateway) url(path string) string {
	return g.settings.Endpoint() + path
}

// checkStatus turns a non-2xx response into a KindUpstream error, using the
// server's {"error": "..."} body when present.
func checkStatus(op string, resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	msg := resp.Status()
	var body OllamaError
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Error != "" {
		msg = body.Error
	}
	return &GatewayError{
		Kind:       KindUpstream,
		Op:         op,
		StatusCode: resp.StatusCode(),
		Message:    msg,
	}
}

// decodeObject classifies and decodes a 2xx body that must be a JSON object
// containing field.
func decodeObject(op string, body []byte, field string, out interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return &GatewayError{Kind: KindMalformed, Op: op, Message: "empty response body"}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil || fields == nil {
		return &GatewayError{Kind: KindMalformed, Op: op, Message: "response is not a JSON object", Cause: err}
	}
	if _, ok := fields[field]; !ok {
		return &GatewayError{Kind: KindMalformed, Op: op, Message: fmt.Sprintf("response has no %q field", field)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &GatewayError{Kind: KindParse, Op: op, Message: "unexpected response shape", Cause: err}
	}
	return nil
}
