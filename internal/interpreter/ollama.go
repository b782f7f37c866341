package interpreter

import (
	"context"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// OllamaDefaultURL is the local Ollama endpoint.
	OllamaDefaultURL = "http://localhost:11434"
	// OllamaDefaultModel is used when no model is configured.
	OllamaDefaultModel = "llama3.2"
)

// Options configures a provider.
type Options struct {
	Model   string
	BaseURL string
	APIKey  string
	// Timeout bounds each Generate call. Zero means DefaultTimeout.
	Timeout time.Duration
	// HTTPClient overrides the transport; its own Timeout is left alone.
	HTTPClient *http.Client
}

// Ollama talks to a local Ollama server.
type Ollama struct {
	client  *http.Client
	baseURL string
	model   string
	timeout time.Duration
}

// NewOllama builds an Ollama gateway. OLLAMA_HOST overrides the base URL.
func NewOllama(opts Options) (*Ollama, error) {
	timeout, err := checkTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}
	base := opts.BaseURL
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		base = host
	}
	if base == "" {
		base = OllamaDefaultURL
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	model := opts.Model
	if model == "" {
		model = OllamaDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &Ollama{
		client:  client,
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		timeout: timeout,
	}, nil
}

func (o *Ollama) Name() string  { return "ollama" }
func (o *Ollama) Model() string { return o.model }

// BaseURL returns the resolved endpoint.
func (o *Ollama) BaseURL() string { return o.baseURL }

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaGenerateReq struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	Options ollamaOptions `json:"options"`
	System  string        `json:"system,omitempty"`
}

type ollamaGenerateResp struct {
	Response        string `json:"response"`
	Model           string `json:"model"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
	TotalDuration   int64  `json:"total_duration"`
}

// Generate calls /api/generate without streaming.
func (o *Ollama) Generate(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	body := ollamaGenerateReq{
		Model:   o.model,
		Prompt:  req.Prompt,
		Options: ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
		System:  req.System,
	}
	var out ollamaGenerateResp
	if err := postJSON(ctx, o.client, o.baseURL+"/api/generate", nil, body, &out); err != nil {
		return failed(o.model, describe(err))
	}
	model := out.Model
	if model == "" {
		model = o.model
	}
	return Response{
		Content: out.Response,
		Model:   model,
		Usage:   &Usage{PromptTokens: out.PromptEvalCount, CompletionTokens: out.EvalCount},
		Raw: map[string]any{
			"model":             model,
			"prompt_eval_count": out.PromptEvalCount,
			"eval_count":        out.EvalCount,
			"total_duration":    out.TotalDuration,
		},
	}
}

// IsAvailable probes /api/tags.
func (o *Ollama) IsAvailable(ctx context.Context) bool {
	return probe(ctx, o.client, o.baseURL+"/api/tags", nil)
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ListModels returns the models installed on the server.
func (o *Ollama) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	var tags ollamaTags
	if err := getJSON(ctx, o.client, o.baseURL+"/api/tags", nil, &tags); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
