package interpreter

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"
)

const (
	// GeminiDefaultModel is used when no model is configured.
	GeminiDefaultModel = "gemini-2.0-flash"
	// GeminiKeyEnv is read when no key is configured.
	GeminiKeyEnv = "GEMINI_API_KEY"
)

// Gemini talks to the Gemini API through the genai SDK.
type Gemini struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemini builds a Gemini gateway. The key falls back to GEMINI_API_KEY.
func NewGemini(ctx context.Context, opts Options) (*Gemini, error) {
	timeout, err := checkTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(GeminiKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, GeminiKeyEnv)
	}
	cfg := &genai.ClientConfig{
		APIKey:     key,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if opts.BaseURL != "" {
		cfg.HTTPOptions.BaseURL = strings.TrimRight(opts.BaseURL, "/") + "/"
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	model := opts.Model
	if model == "" {
		model = GeminiDefaultModel
	}
	return &Gemini{client: client, model: model, timeout: timeout}, nil
}

func (g *Gemini) Name() string  { return "gemini" }
func (g *Gemini) Model() string { return g.model }

// Generate calls GenerateContent with a single user turn.
func (g *Gemini) Generate(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Temperature)),
	}
	if req.System != "" {
		config.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}

	out, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), config)
	if err != nil {
		return failed(g.model, describe(err))
	}
	model := out.ModelVersion
	if model == "" {
		model = g.model
	}
	resp := Response{
		Content: out.Text(),
		Model:   model,
		Raw:     map[string]any{"model": model, "candidates": len(out.Candidates)},
	}
	if u := out.UsageMetadata; u != nil {
		resp.Usage = &Usage{PromptTokens: int(u.PromptTokenCount), CompletionTokens: int(u.CandidatesTokenCount)}
	}
	return resp
}

// IsAvailable looks up the configured model.
func (g *Gemini) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()
	_, err := g.client.Models.Get(ctx, g.model, nil)
	return err == nil
}

// ListModels returns the model names visible to the key.
func (g *Gemini) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	page, err := g.client.Models.List(ctx, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(page.Items))
	for _, m := range page.Items {
		names = append(names, strings.TrimPrefix(m.Name, "models/"))
	}
	return names, nil
}
