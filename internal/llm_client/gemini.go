package llm_client

import (
	"context"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"
)

const geminiDefault = "gemini-2.0-flash"

type geminiProvider struct {
	client *genai.Client
	model  string
}

// resolveGeminiKey prefers the injected config value over the documented
// environment variables, matching how the ollama provider resolves its host.
func resolveGeminiKey(cfg Config) string {
	if k := strings.TrimSpace(cfg.APIKey); k != "" {
		return k
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		return k
	}
	return os.Getenv("GOOGLE_API_KEY")
}

func (p *geminiProvider) Init(cfg Config) error {
	key := resolveGeminiKey(cfg)
	if key == "" {
		return fmt.Errorf("gemini: no API key (set llm.api_key or GEMINI_API_KEY)")
	}
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  key,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return fmt.Errorf("gemini client init: %w", err)
	}
	p.client = client
	p.model = geminiDefault
	if m := strings.TrimSpace(cfg.Model); m != "" {
		p.model = m
	}
	return nil
}

func (p *geminiProvider) DefaultModel() string { return geminiDefault }

// AllowedModelOrDefault admits gemini-family names only, so a stray model
// string from a prompt cannot route a call to a nonexistent model.
func (p *geminiProvider) AllowedModelOrDefault(model string) string {
	m := strings.TrimSpace(model)
	switch {
	case m == "":
		return p.model
	case strings.HasPrefix(strings.ToLower(m), "gemini-"):
		return m
	default:
		return geminiDefault
	}
}

func firstCandidateText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 ||
		resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty response")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func (p *geminiProvider) Generate(ctx context.Context, prompt, model string) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.AllowedModelOrDefault(model), genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return firstCandidateText(resp)
}

func (p *geminiProvider) GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error) {
	if p.client == nil {
		return "", ErrNotInitialized
	}
	gcfg := &genai.GenerateContentConfig{ResponseMIMEType: "application/json"}
	if schema != nil {
		gcfg.ResponseJsonSchema = schema
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.AllowedModelOrDefault(model), genai.Text(prompt), gcfg)
	if err != nil {
		return "", fmt.Errorf("gemini generate json: %w", err)
	}
	return firstCandidateText(resp)
}
