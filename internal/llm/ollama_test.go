package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaProvider_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("Expected path /api/generate, got %s", r.URL.Path)
		}

		var apiReq ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&apiReq); err != nil {
			t.Errorf("Failed to decode request: %v", err)
		}
		if apiReq.Stream {
			t.Error("Expected non-streaming request")
		}
		if apiReq.Model != "llama3.1" {
			t.Errorf("Expected model llama3.1, got %s", apiReq.Model)
		}

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.1",
			Response:        `{"problems": []}`,
			Done:            true,
			DoneReason:      "stop",
			PromptEvalCount: 300,
			EvalCount:       40,
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{
		BaseURL: server.URL,
		Model:   "llama3.1",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "extract"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `{"problems": []}` {
		t.Errorf("Unexpected text: %s", resp.Text)
	}
	if resp.InputTokens != 300 || resp.OutputTokens != 40 {
		t.Errorf("Unexpected token usage: %d/%d", resp.InputTokens, resp.OutputTokens)
	}
	if resp.Truncated {
		t.Error("Expected Truncated false for stop")
	}
}

func TestOllamaProvider_Complete_TruncationFlag(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:      "llama3.1",
			Response:   `{"problems": [`,
			Done:       true,
			DoneReason: "length",
		})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{
		BaseURL: server.URL,
		Model:   "llama3.1",
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}

	resp, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if !resp.Truncated {
		t.Error("Expected Truncated true for length done reason")
	}
}

func TestOllamaProvider_RequiresModel(t *testing.T) {
	provider, err := NewOllamaProvider(Config{BaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if _, err := provider.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Error("Expected error without a model name")
	}
}

func TestOllamaProvider_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("Expected path /api/tags, got %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"models": []}`))
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("Failed to create provider: %v", err)
	}
	if !provider.IsAvailable(context.Background()) {
		t.Error("Expected available to be true")
	}
}

func TestNewProvider_Factory(t *testing.T) {
	cases := []struct {
		provider string
		config   Config
		wantName string
		wantErr  bool
	}{
		{"openai", Config{Provider: "openai", APIKey: "k"}, "openai", false},
		{"anthropic", Config{Provider: "anthropic", APIKey: "k"}, "anthropic", false},
		{"claude alias", Config{Provider: "claude", APIKey: "k"}, "anthropic", false},
		{"ollama", Config{Provider: "ollama"}, "ollama", false},
		{"unknown", Config{Provider: "bard"}, "", true},
		{"empty", Config{}, "", true},
	}
	for _, c := range cases {
		p, err := NewProvider(c.config)
		if c.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", c.provider)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error %v", c.provider, err)
			continue
		}
		if p.Name() != c.wantName {
			t.Errorf("%s: expected name %s, got %s", c.provider, c.wantName, p.Name())
		}
	}
}
