// Package ollama talks to a local Ollama server through its native /api/chat
// endpoint. No API key is involved.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/animus-coder/autofix/internal/llm"
)

// DefaultBaseURL is where `ollama serve` listens by default.
const DefaultBaseURL = "http://127.0.0.1:11434"

// ErrModelNotPulled reports that the server does not have the requested model.
var ErrModelNotPulled = errors.New("model not available on ollama server")

// Provider sends single-turn diagnosis and patch prompts to Ollama.
type Provider struct {
	name     string
	endpoint string
	http     *http.Client
}

// NewProvider constructs an Ollama provider. An empty baseURL means DefaultBaseURL.
func NewProvider(name, baseURL string, timeout time.Duration) *Provider {
	if name == "" {
		name = "ollama"
	}
	if baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/"); baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Provider{
		name:     name,
		endpoint: baseURL + "/api/chat",
		http:     &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string { return p.name }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// options are sent on every call; temperature 0 must reach the server so a
// repair run is as deterministic as the model allows.
type options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type chatRequest struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
	Stream   bool      `json:"stream"`
	Options  options   `json:"options"`
}

type chatResponse struct {
	Message         message `json:"message"`
	Done            bool    `json:"done"`
	DoneReason      string  `json:"done_reason"`
	PromptEvalCount int     `json:"prompt_eval_count"`
	EvalCount       int     `json:"eval_count"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Chat performs one non-streaming completion.
func (p *Provider) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	if req.Model == "" {
		return llm.ChatResponse{}, fmt.Errorf("%s: model is required", p.name)
	}

	in := chatRequest{
		Model:    req.Model,
		Messages: make([]message, 0, len(req.Messages)),
		Options:  options{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	for _, m := range req.Messages {
		in.Messages = append(in.Messages, message{Role: string(m.Role), Content: m.Content})
	}

	payload, err := json.Marshal(in)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("%s: encode request: %w", p.name, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("%s: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := p.http.Do(httpReq)
	if err != nil {
		return llm.ChatResponse{}, fmt.Errorf("%s: is `ollama serve` running at %s? %w", p.name, p.endpoint, err)
	}
	defer res.Body.Close()

	if res.StatusCode >= 300 {
		return llm.ChatResponse{}, p.statusError(res, req.Model)
	}

	var out chatResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return llm.ChatResponse{}, fmt.Errorf("%s: decode response: %w", p.name, err)
	}
	if !out.Done {
		return llm.ChatResponse{}, fmt.Errorf("%s: incomplete response for model %s", p.name, req.Model)
	}

	return llm.ChatResponse{
		Message:      llm.ChatMessage{Role: llm.RoleAssistant, Content: out.Message.Content},
		FinishReason: out.DoneReason,
		Usage: llm.Usage{
			PromptTokens:     out.PromptEvalCount,
			CompletionTokens: out.EvalCount,
			TotalTokens:      out.PromptEvalCount + out.EvalCount,
		},
		ProviderName: p.name,
		Model:        req.Model,
	}, nil
}

func (p *Provider) statusError(res *http.Response, model string) error {
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
	detail := strings.TrimSpace(string(raw))
	var e errorResponse
	if json.Unmarshal(raw, &e) == nil && e.Error != "" {
		detail = e.Error
	}
	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w: %s (run `ollama pull %s`)", p.name, ErrModelNotPulled, detail, model)
	}
	return fmt.Errorf("%s: status %d: %s", p.name, res.StatusCode, detail)
}
