package llm

import (
	"context"
	"fmt"
	"strings"
)

// Client binds a provider to a model and sampling parameters.
type Client struct {
	Provider    Provider
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewClient constructs a Client.
func NewClient(p Provider, model string, temperature float64, maxTokens int) *Client {
	return &Client{Provider: p, Model: model, Temperature: temperature, MaxTokens: maxTokens}
}

// ProviderName reports the backing provider, for logs and metrics.
func (c *Client) ProviderName() string {
	if c == nil || c.Provider == nil {
		return ""
	}
	return c.Provider.Name()
}

// Complete sends one system+user exchange and returns the assistant text.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if c == nil || c.Provider == nil {
		return "", fmt.Errorf("llm client has no provider")
	}

	messages := make([]ChatMessage, 0, 2)
	if strings.TrimSpace(system) != "" {
		messages = append(messages, ChatMessage{Role: RoleSystem, Content: system})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: prompt})

	resp, err := c.Provider.Chat(ctx, ChatRequest{
		Model:       c.Model,
		Messages:    messages,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp.Message.Content) == "" {
		return "", fmt.Errorf("%s: empty completion", c.Provider.Name())
	}
	return resp.Message.Content, nil
}
