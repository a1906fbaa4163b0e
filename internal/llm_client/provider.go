package llm_client

import (
	"context"
	"fmt"
	"strings"
)

type Config struct {
	Backend    string
	Model      string
	APIKey     string
	OllamaHost string
}

type Provider interface {
	Init(cfg Config) error
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

// Client wraps one configured provider. It is constructed once in main and
// injected where needed rather than held as package state.
type Client struct {
	provider Provider
	backend  string
	model    string
}

func New(cfg Config) (*Client, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = "gemini"
	}
	var p Provider
	switch backend {
	case "ollama":
		p = &ollamaProvider{}
	case "gemini":
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = p.DefaultModel()
	}
	return &Client{provider: p, backend: backend, model: model}, nil
}

func (c *Client) Backend() string { return c.backend }

// Generate produces free-form text with the configured default model.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c == nil || c.provider == nil {
		return "", ErrNotInitialized
	}
	return c.provider.Generate(ctx, prompt, c.model)
}

// GenerateJSON produces strict JSON, optionally constrained by a schema.
func (c *Client) GenerateJSON(ctx context.Context, prompt string, schema any) (string, error) {
	if c == nil || c.provider == nil {
		return "", ErrNotInitialized
	}
	return c.provider.GenerateJSON(ctx, prompt, c.model, schema)
}

// GenerateWithModel overrides the default model for one call.
func (c *Client) GenerateWithModel(ctx context.Context, prompt, model string) (string, error) {
	if c == nil || c.provider == nil {
		return "", ErrNotInitialized
	}
	return c.provider.Generate(ctx, prompt, c.provider.AllowedModelOrDefault(model))
}
