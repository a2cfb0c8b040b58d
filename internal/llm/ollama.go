package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OllamaProvider runs extraction against a local Ollama server. There is no
// pricing for local models, so the cost tracker records zero spend for it.
type OllamaProvider struct {
	base   string
	http   *http.Client
	config Config
}

type ollamaRequest struct {
	Model   string        `json:"model"`
	Prompt  string        `json:"prompt"`
	Stream  bool          `json:"stream"`
	System  string        `json:"system,omitempty"`
	Options ollamaOptions `json:"options,omitempty"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Model      string `json:"model"`
	Response   string `json:"response"`
	Done       bool   `json:"done"`
	DoneReason string `json:"done_reason,omitempty"`

	// Present only on the final (done) message.
	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

// NewOllamaProvider creates the provider. No credentials are needed; the
// default endpoint is the local daemon.
func NewOllamaProvider(config Config) (*OllamaProvider, error) {
	timeout := config.Timeout
	if timeout <= 0 {
		// Local models are slow; give them more room than the hosted APIs.
		timeout = 120 * time.Second
	}

	return &OllamaProvider{
		base:   strings.TrimSuffix(firstNonEmpty(config.BaseURL, "http://localhost:11434"), "/"),
		http:   &http.Client{Timeout: timeout},
		config: config,
	}, nil
}

func (p *OllamaProvider) Name() string { return "ollama" }

// IsAvailable checks that the daemon answers its tag listing endpoint.
func (p *OllamaProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.base+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.http.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

// Complete runs one extraction prompt through the non-streaming generate API.
func (p *OllamaProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	model := firstNonEmpty(req.Model, p.config.Model)
	if model == "" {
		return nil, fmt.Errorf("ollama: model name is required")
	}

	body, err := json.Marshal(ollamaRequest{
		Model:  model,
		Prompt: req.Prompt,
		Stream: false,
		System: extractionSystem,
		Options: ollamaOptions{
			Temperature: 0.2,
			NumPredict:  firstPositive(req.MaxTokens, p.config.MaxTokens, 4000),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("ollama: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.base+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ollama: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := p.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	if httpResp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(httpResp.Body)
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("ollama: API error (%d): %s", httpResp.StatusCode, apiErr.Error)
		}
		return nil, fmt.Errorf("ollama: API error (%d): %s", httpResp.StatusCode, string(raw))
	}

	var resp ollamaResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("ollama: decode response: %w", err)
	}

	return &CompletionResponse{
		Text:         strings.TrimSpace(resp.Response),
		Model:        resp.Model,
		InputTokens:  resp.PromptEvalCount,
		OutputTokens: resp.EvalCount,
		Truncated:    resp.DoneReason == "length",
	}, nil
}
