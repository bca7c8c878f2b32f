package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"

	goopenai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/require"

	"github.com/animus-coder/autofix/internal/llm"
)

func TestChatSendsRequestAndParsesResponse(t *testing.T) {
	t.Parallel()

	cfg := goopenai.DefaultConfig("key")
	cfg.BaseURL = "http://mock/v1"
	cfg.HTTPClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/chat/completions", r.URL.Path)
			require.Equal(t, "Bearer key", r.Header.Get("Authorization"))

			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)

			var reqBody map[string]interface{}
			require.NoError(t, json.Unmarshal(body, &reqBody))
			require.Equal(t, "gpt-4o-mini", reqBody["model"])
			msgs, ok := reqBody["messages"].([]interface{})
			require.True(t, ok)
			require.Len(t, msgs, 2)

			return jsonResponse(http.StatusOK, `{
				"id": "cmpl-1",
				"object": "chat.completion",
				"choices": [{
					"index": 0,
					"finish_reason": "stop",
					"message": {"role": "assistant", "content": "hello"}
				}],
				"usage": {"prompt_tokens": 1, "completion_tokens": 2, "total_tokens": 3}
			}`), nil
		}),
	}
	p := fromConfig("openai", cfg)

	resp, err := p.Chat(context.Background(), llm.ChatRequest{
		Model: "gpt-4o-mini",
		Messages: []llm.ChatMessage{
			{Role: llm.RoleSystem, Content: "be brief"},
			{Role: llm.RoleUser, Content: "hi"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "hello", resp.Message.Content)
	require.Equal(t, "stop", resp.FinishReason)
	require.Equal(t, 3, resp.Usage.TotalTokens)
	require.Equal(t, "openai", resp.ProviderName)
}

func TestChatSurfacesAPIErrors(t *testing.T) {
	t.Parallel()

	cfg := goopenai.DefaultConfig("bad")
	cfg.BaseURL = "http://mock/v1"
	cfg.HTTPClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusUnauthorized, `{"error":{"message":"invalid key","type":"auth"}}`), nil
		}),
	}
	p := fromConfig("deepseek", cfg)

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:    "deepseek-chat",
		Messages: []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "deepseek")
}

func TestChatSendsZeroTemperature(t *testing.T) {
	t.Parallel()

	var reqBody map[string]interface{}
	cfg := goopenai.DefaultConfig("key")
	cfg.BaseURL = "http://mock/v1"
	cfg.HTTPClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(body, &reqBody))
			return jsonResponse(http.StatusOK, `{"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"ok"}}]}`), nil
		}),
	}
	p := fromConfig("dashscope", cfg)

	_, err := p.Chat(context.Background(), llm.ChatRequest{
		Model:       "qwen-plus",
		Messages:    []llm.ChatMessage{{Role: llm.RoleUser, Content: "hi"}},
		Temperature: 0,
	})
	require.NoError(t, err)

	temp, ok := reqBody["temperature"].(float64)
	require.True(t, ok, "temperature must be sent for a zero value")
	require.Less(t, temp, 1e-6)
}

func TestTemperatureKeepsNonZeroValues(t *testing.T) {
	require.InDelta(t, 0.7, float64(temperature(0.7)), 1e-6)
	require.Greater(t, temperature(0), float32(0))
}

func TestChatRequiresModel(t *testing.T) {
	p := NewProvider("openai", "", "", 0)
	_, err := p.Chat(context.Background(), llm.ChatRequest{})
	require.Error(t, err)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

type roundTripFunc func(r *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}
