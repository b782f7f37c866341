// Package interpreter talks to the text-generation services that read test
// output. Every provider satisfies Gateway; transport problems come back as
// an empty Response carrying a diagnostic instead of an error.
package interpreter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"google.golang.org/genai"
)

const (
	// DefaultTimeout bounds a single generation call.
	DefaultTimeout = 120 * time.Second
	// ProbeTimeout bounds an availability probe.
	ProbeTimeout = 5 * time.Second
)

var (
	// ErrMissingAPIKey is returned when a hosted provider has no key.
	ErrMissingAPIKey = errors.New("interpreter: missing API key")
	// ErrUnknownProvider is returned by New for an unsupported provider name.
	ErrUnknownProvider = errors.New("interpreter: unknown provider")
	// ErrInvalidTimeout is returned for negative timeouts.
	ErrInvalidTimeout = errors.New("interpreter: timeout must not be negative")
)

// Gateway is the contract shared by all providers.
type Gateway interface {
	// Name identifies the provider, e.g. "ollama".
	Name() string
	// Model is the configured model identifier.
	Model() string
	// Generate never returns an error; failures yield an empty Content and
	// an "error" entry in Raw.
	Generate(ctx context.Context, req Request) Response
	// IsAvailable is a cheap reachability probe.
	IsAvailable(ctx context.Context) bool
}

// ModelLister is implemented by providers that can enumerate models.
type ModelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Request is a single prompt.
type Request struct {
	Prompt      string
	System      string
	Temperature float64
	// MaxTokens caps the completion; zero leaves it to the provider.
	MaxTokens int
}

// Usage reports token accounting when the provider returns it.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Response is the result of Generate.
type Response struct {
	Content string
	Model   string
	Usage   *Usage
	Raw     map[string]any
}

// OK reports whether the call produced content.
func (r Response) OK() bool {
	return r.Content != ""
}

// Err returns the diagnostic recorded for a failed call.
func (r Response) Err() string {
	if r.Raw == nil {
		return ""
	}
	msg, _ := r.Raw["error"].(string)
	return msg
}

func failed(model, msg string) Response {
	return Response{Model: model, Raw: map[string]any{"error": msg}}
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("HTTP error: %d", e.code)
}

// describe turns a transport error into the diagnostic stored in Raw.
func describe(err error) string {
	var status *statusError
	if errors.As(err, &status) {
		return status.Error()
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Sprintf("HTTP error: %d", apiErr.Code)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return fmt.Sprintf("HTTP error: %d", apiErrPtr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "Request timed out"
	}
	return err.Error()
}

func checkTimeout(d time.Duration) (time.Duration, error) {
	if d < 0 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidTimeout, d)
	}
	if d == 0 {
		return DefaultTimeout, nil
	}
	return d, nil
}

type disabled struct{}

// Disabled returns a gateway that is never available.
func Disabled() Gateway {
	return disabled{}
}

func (disabled) Name() string                     { return "disabled" }
func (disabled) Model() string                    { return "" }
func (disabled) IsAvailable(context.Context) bool { return false }
func (disabled) Generate(context.Context, Request) Response {
	return failed("", "interpreter disabled")
}
