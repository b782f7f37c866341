package interpreter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestOllamaGenerate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"hello","model":"llama3.2:latest","prompt_eval_count":11,"eval_count":3}`))
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", "")

	gw, err := NewOllama(Options{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	resp := gw.Generate(context.Background(), Request{Prompt: "hi", System: "be brief", Temperature: 0.1, MaxTokens: 64})
	if !resp.OK() || resp.Content != "hello" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if resp.Model != "llama3.2:latest" {
		t.Fatalf("model = %q", resp.Model)
	}
	if resp.Usage == nil || resp.Usage.PromptTokens != 11 || resp.Usage.CompletionTokens != 3 {
		t.Fatalf("usage = %+v", resp.Usage)
	}

	if got["model"] != OllamaDefaultModel || got["prompt"] != "hi" || got["stream"] != false || got["system"] != "be brief" {
		t.Fatalf("unexpected payload %v", got)
	}
	options, _ := got["options"].(map[string]any)
	if options["temperature"] != 0.1 || options["num_predict"] != float64(64) {
		t.Fatalf("unexpected options %v", options)
	}
}

func TestOllamaOmitsOptionalFields(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", "")

	gw, err := NewOllama(Options{BaseURL: srv.URL, Model: "codellama"})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	resp := gw.Generate(context.Background(), Request{Prompt: "x"})
	if resp.Model != "codellama" {
		t.Fatalf("expected configured model as fallback, got %q", resp.Model)
	}
	if _, ok := got["system"]; ok {
		t.Fatalf("system must be omitted when empty: %v", got)
	}
	if options := got["options"].(map[string]any); len(options) != 1 {
		t.Fatalf("num_predict must be omitted when zero: %v", options)
	}
}

func TestOllamaHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", "")

	gw, _ := NewOllama(Options{BaseURL: srv.URL})
	resp := gw.Generate(context.Background(), Request{Prompt: "x"})
	if resp.OK() {
		t.Fatalf("expected degraded response, got %+v", resp)
	}
	if resp.Err() != "HTTP error: 404" {
		t.Fatalf("diagnostic = %q", resp.Err())
	}
}

func TestOllamaTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", "")

	gw, _ := NewOllama(Options{BaseURL: srv.URL, Timeout: 50 * time.Millisecond})
	resp := gw.Generate(context.Background(), Request{Prompt: "x"})
	if resp.Err() != "Request timed out" {
		t.Fatalf("diagnostic = %q", resp.Err())
	}
}

func TestOllamaConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("OLLAMA_HOST", "")

	gw, _ := NewOllama(Options{BaseURL: url})
	resp := gw.Generate(context.Background(), Request{Prompt: "x"})
	if resp.OK() || resp.Err() == "" {
		t.Fatalf("expected diagnostic for refused connection, got %+v", resp)
	}
	if gw.IsAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
}

func TestOllamaAvailabilityAndModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"models":[{"name":"llama3.2:latest"},{"name":"qwen2.5-coder:7b"}]}`))
	}))
	defer srv.Close()
	t.Setenv("OLLAMA_HOST", strings.TrimPrefix(srv.URL, "http://"))

	gw, err := NewOllama(Options{BaseURL: "http://ignored:1"})
	if err != nil {
		t.Fatalf("NewOllama: %v", err)
	}
	if gw.BaseURL() != srv.URL {
		t.Fatalf("OLLAMA_HOST not applied: %q", gw.BaseURL())
	}
	if !gw.IsAvailable(context.Background()) {
		t.Fatalf("expected available")
	}
	models, err := gw.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 2 || models[1] != "qwen2.5-coder:7b" {
		t.Fatalf("models = %v", models)
	}
}

func TestNegativeTimeoutRejected(t *testing.T) {
	if _, err := NewOllama(Options{Timeout: -time.Second}); err == nil {
		t.Fatalf("expected error for negative timeout")
	}
}
