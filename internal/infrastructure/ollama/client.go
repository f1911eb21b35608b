// Package ollama is a minimal client for the Ollama /api/generate endpoint.
package ollama

import (
	"context"
	"strings"

	"github.com/turtacn/trialscope/internal/config"
	"github.com/turtacn/trialscope/internal/infrastructure/httpclient"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/trialscope/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/trialscope/pkg/errors"
)

// SourceName labels the model server in logs and metrics.
const SourceName = "ollama"

// DefaultModel is used when no model is configured.
const DefaultModel = "gemma3:27b"

type generateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	System  string                 `json:"system"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Client sends non-streaming generate requests.
type Client struct {
	http  *httpclient.Client
	model string
}

// NewClient builds a Client from cfg. Credentials, when set, are sent as
// HTTP basic auth.
func NewClient(cfg config.LLMConfig, logger logging.Logger, metrics *prometheus.AppMetrics) (*Client, error) {
	opts := []httpclient.Option{
		httpclient.WithTimeout(cfg.Timeout),
		// Generation is expensive; retry a 5xx once.
		httpclient.WithRetryMax(1),
		httpclient.WithLogger(logger),
		httpclient.WithMetrics(metrics),
	}
	if cfg.Username != "" || cfg.Password != "" {
		opts = append(opts, httpclient.WithBasicAuth(cfg.Username, cfg.Password))
	}
	hc, err := httpclient.New(SourceName, cfg.BaseURL, opts...)
	if err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = DefaultModel
	}
	return &Client{http: hc, model: model}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string { return c.model }

// Generate returns the model's complete response to prompt.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	req := generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		System:  "",
		Stream:  false,
		Options: map[string]interface{}{},
	}
	var resp generateResponse
	if err := c.http.PostJSON(ctx, "generate", "api/generate", req, &resp); err != nil {
		return "", errors.Wrap(err, errors.CodeAIInferenceFailed, "ollama: generate")
	}
	return resp.Response, nil
}
