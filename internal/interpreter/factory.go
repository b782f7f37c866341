package interpreter

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	Model    string
	BaseURL  string
	// APIKeyEnv names the environment variable holding the key.
	APIKeyEnv  string
	Timeout    time.Duration
	HTTPClient *http.Client
}

type constructor func(ctx context.Context, opts Options) (Gateway, error)

var providers = map[string]constructor{
	"ollama": func(_ context.Context, opts Options) (Gateway, error) {
		return NewOllama(opts)
	},
	"openrouter": func(_ context.Context, opts Options) (Gateway, error) {
		return NewOpenRouter(opts)
	},
	"gemini": func(ctx context.Context, opts Options) (Gateway, error) {
		return NewGemini(ctx, opts)
	},
}

// Providers lists the supported provider names.
func Providers() []string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New builds the configured provider and applies mws around it.
func New(ctx context.Context, cfg Config, mws ...Middleware) (Gateway, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = "ollama"
	}
	build, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (want one of %s)", ErrUnknownProvider, cfg.Provider, strings.Join(Providers(), ", "))
	}
	opts := Options{
		Model:      cfg.Model,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.APIKeyEnv != "" {
		opts.APIKey = os.Getenv(cfg.APIKeyEnv)
	}
	gw, err := build(ctx, opts)
	if err != nil {
		return nil, err
	}
	return Wrap(gw, mws...), nil
}
