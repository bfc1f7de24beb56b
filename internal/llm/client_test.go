package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/lazypower/attractor/internal/config"
)

func TestNewClientClaudeCLI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "claude-cli", Model: "haiku"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*ClaudeCLI); !ok {
		t.Errorf("expected *ClaudeCLI, got %T", client)
	}
}

func TestNewClientAnthropic(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic", AnthropicKey: "test-key", Model: "claude-haiku-4-5-20251001"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Anthropic); !ok {
		t.Errorf("expected *Anthropic, got %T", client)
	}
}

func TestNewClientAnthropicMissingKey(t *testing.T) {
	cfg := config.LLMConfig{Provider: "anthropic"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientOllama(t *testing.T) {
	cfg := config.LLMConfig{Provider: "ollama", OllamaModel: "llama3.2"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*Ollama); !ok {
		t.Errorf("expected *Ollama, got %T", client)
	}
}

func TestNewClientOpenAI(t *testing.T) {
	cfg := config.LLMConfig{Provider: "openai", OpenAIKey: "test-key"}
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := client.(*OpenAI); !ok {
		t.Errorf("expected *OpenAI, got %T", client)
	}
}

func TestNewClientOpenAIMissingKey(t *testing.T) {
	cfg := config.LLMConfig{Provider: "openai"}
	if _, err := NewClient(cfg); err == nil {
		t.Error("expected error for missing API key")
	}
}

func TestNewClientUnknown(t *testing.T) {
	cfg := config.LLMConfig{Provider: "gpt"}
	_, err := NewClient(cfg)
	if err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestFilterEnv(t *testing.T) {
	env := []string{
		"HOME=/home/user",
		"CLAUDE_SESSION_ID=abc123",
		"CLAUDE_TRANSCRIPT=/tmp/t.jsonl",
		"PATH=/usr/bin",
	}
	filtered := filterEnv(env)
	if len(filtered) != 2 {
		t.Errorf("expected 2 vars, got %d: %v", len(filtered), filtered)
	}
	for _, e := range filtered {
		if e == "CLAUDE_SESSION_ID=abc123" || e == "CLAUDE_TRANSCRIPT=/tmp/t.jsonl" {
			t.Errorf("CLAUDE_ var not filtered: %s", e)
		}
	}
}

func TestResonancePrompt(t *testing.T) {
	prompt := ResonancePrompt("neurons fire together", "cognitive", "cognitive science", []string{"brain", "memory"})
	for _, want := range []string{"neurons fire together", "BASIN: cognitive", "cognitive science", "brain, memory"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}

	bare := ResonancePrompt("x", "physics", "", nil)
	if !strings.Contains(bare, "DESCRIPTION: physics") || !strings.Contains(bare, "none listed") {
		t.Errorf("bare prompt should fall back to name and no concepts:\n%s", bare)
	}
}

func TestOpenAIComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.Messages[0].Content != "score this" {
			t.Errorf("unexpected request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-1",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": "0.75"}}},
			"usage":   map[string]int{"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12},
		})
	}))
	defer srv.Close()

	client := NewOpenAI("test-key", "gpt-4o-mini", srv.URL+"/v1")
	resp, err := client.Complete(context.Background(), "score this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "0.75" || resp.Provider != "openai" || resp.TokensUsed != 12 {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAnthropicComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]string{{"text": "0.4"}},
			"usage":   map[string]int{"input_tokens": 20, "output_tokens": 1},
		})
	}))
	defer srv.Close()

	client := NewAnthropic("test-key", "claude-haiku-4-5-20251001")
	client.baseURL = srv.URL
	resp, err := client.Complete(context.Background(), "score this")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "0.4" || resp.TokensUsed != 21 {
		t.Errorf("resp = %+v", resp)
	}

	bad := NewAnthropic("wrong", "m")
	bad.baseURL = srv.URL
	if _, err := bad.Complete(context.Background(), "x"); err == nil {
		t.Error("expected error on 401")
	}
}

func TestOllamaComplete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "0.9"})
	}))
	defer srv.Close()

	resp, err := NewOllama(srv.URL, "llama3.2").Complete(context.Background(), "x")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "0.9" || resp.Provider != "ollama" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestMockClient(t *testing.T) {
	mock := &MockClient{
		Response: &Response{Content: "test response", Provider: "mock"},
	}

	resp, err := mock.Complete(context.Background(), "test prompt")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Content != "test response" {
		t.Errorf("content = %q, want %q", resp.Content, "test response")
	}
	if len(mock.Calls) != 1 {
		t.Errorf("expected 1 call, got %d", len(mock.Calls))
	}
	if mock.Calls[0] != "test prompt" {
		t.Errorf("call[0] = %q, want %q", mock.Calls[0], "test prompt")
	}
}
