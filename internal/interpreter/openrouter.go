package interpreter

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	// OpenRouterDefaultURL is the hosted API root.
	OpenRouterDefaultURL = "https://openrouter.ai/api/v1"
	// OpenRouterDefaultModel is used when no model is configured.
	OpenRouterDefaultModel = "qwen/qwen3-coder:free"
	// OpenRouterKeyEnv is read when no key is configured.
	OpenRouterKeyEnv = "OPENROUTER_API_KEY"
)

// OpenRouter talks to the OpenAI compatible chat completions API.
type OpenRouter struct {
	client  *http.Client
	baseURL string
	model   string
	apiKey  string
	timeout time.Duration
}

// NewOpenRouter builds an OpenRouter gateway. The key falls back to
// OPENROUTER_API_KEY; without one ErrMissingAPIKey is returned.
func NewOpenRouter(opts Options) (*OpenRouter, error) {
	timeout, err := checkTimeout(opts.Timeout)
	if err != nil {
		return nil, err
	}
	key := opts.APIKey
	if key == "" {
		key = os.Getenv(OpenRouterKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: set %s", ErrMissingAPIKey, OpenRouterKeyEnv)
	}
	base := opts.BaseURL
	if base == "" {
		base = OpenRouterDefaultURL
	}
	model := opts.Model
	if model == "" {
		model = OpenRouterDefaultModel
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	return &OpenRouter{
		client:  client,
		baseURL: strings.TrimRight(base, "/"),
		model:   model,
		apiKey:  key,
		timeout: timeout,
	}, nil
}

func (o *OpenRouter) Name() string  { return "openrouter" }
func (o *OpenRouter) Model() string { return o.model }

func (o *OpenRouter) headers() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+o.apiKey)
	return h
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResp struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate calls /chat/completions with an optional system message.
func (o *OpenRouter) Generate(ctx context.Context, req Request) Response {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var messages []chatMessage
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatReq{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	var out chatResp
	if err := postJSON(ctx, o.client, o.baseURL+"/chat/completions", o.headers(), body, &out); err != nil {
		return failed(o.model, describe(err))
	}

	model := out.Model
	if model == "" {
		model = o.model
	}
	resp := Response{Model: model, Raw: map[string]any{"model": model, "choices": len(out.Choices)}}
	if len(out.Choices) > 0 {
		resp.Content = out.Choices[0].Message.Content
	}
	if out.Usage != nil {
		resp.Usage = &Usage{PromptTokens: out.Usage.PromptTokens, CompletionTokens: out.Usage.CompletionTokens}
	}
	return resp
}

// IsAvailable probes /models with the bearer key.
func (o *OpenRouter) IsAvailable(ctx context.Context) bool {
	return probe(ctx, o.client, o.baseURL+"/models", o.headers())
}
