package llm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/animus-coder/autofix/internal/config"
	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/llm/configbuilder"
	llmmock "github.com/animus-coder/autofix/internal/llm/mock"
)

func TestRegistryBuild(t *testing.T) {
	reg := llm.NewRegistry()
	mockProvider := &llmmock.Provider{NameValue: "mock"}
	reg.Register("Mock", func(s llm.Settings) (llm.Provider, error) {
		require.Equal(t, "mock", s.Name)
		return mockProvider, nil
	})

	p, err := reg.Build("mock", llm.Settings{})
	require.NoError(t, err)
	require.Equal(t, mockProvider, p)
	require.True(t, reg.Has(" MOCK "))
}

func TestRegistryRejectsUnknownProvider(t *testing.T) {
	reg := configbuilder.NewRegistry()
	_, err := reg.Build("bard", llm.Settings{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "openai")
	require.Equal(t, []string{"anthropic", "dashscope", "deepseek", "ollama", "openai"}, reg.Names())
}

func TestBuildClientFromConfig(t *testing.T) {
	t.Setenv("DEEPSEEK_API_KEY", "sk-test")
	cfg := config.Default()
	cfg.Provider = "deepseek"
	cfg.Model = "deepseek-chat"

	client, err := configbuilder.BuildClient(cfg)
	require.NoError(t, err)
	require.Equal(t, "deepseek", client.ProviderName())
	require.Equal(t, "deepseek-chat", client.Model)
}

func TestBuildClientRequiresKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	cfg := config.Default()
	cfg.Provider = "anthropic"

	_, err := configbuilder.BuildClient(cfg)
	require.Error(t, err)
	require.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func TestResolveSettingsPrefersEnvThenConfigKey(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "")
	cfg := config.Default()
	cfg.Provider = "dashscope"
	cfg.Providers = map[string]config.ProviderConfig{
		"dashscope": {APIKey: "from-config"},
	}

	s, err := configbuilder.ResolveSettings(cfg)
	require.NoError(t, err)
	require.Equal(t, "from-config", s.APIKey)
	require.Contains(t, s.BaseURL, "dashscope")

	t.Setenv("DASHSCOPE_API_KEY", "from-env")
	s, err = configbuilder.ResolveSettings(cfg)
	require.NoError(t, err)
	require.Equal(t, "from-env", s.APIKey)
}

func TestOllamaNeedsNoKey(t *testing.T) {
	cfg := config.Default()
	cfg.Provider = "ollama"
	cfg.Model = "llama3"

	client, err := configbuilder.BuildClient(cfg)
	require.NoError(t, err)
	require.Equal(t, "ollama", client.ProviderName())
}

func TestClientComplete(t *testing.T) {
	mockProvider := &llmmock.Provider{Replies: []string{"answer"}}
	client := llm.NewClient(mockProvider, "m", 0.1, 64)

	out, err := client.Complete(context.Background(), "system text", "user text")
	require.NoError(t, err)
	require.Equal(t, "answer", out)

	reqs := mockProvider.Requests()
	require.Len(t, reqs, 1)
	require.Equal(t, "m", reqs[0].Model)
	require.Equal(t, 64, reqs[0].MaxTokens)
	require.Len(t, reqs[0].Messages, 2)
	require.Equal(t, llm.RoleSystem, reqs[0].Messages[0].Role)
}

func TestClientCompleteErrors(t *testing.T) {
	boom := errors.New("boom")
	client := llm.NewClient(&llmmock.Provider{
		ChatFn: func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
			return llm.ChatResponse{}, boom
		},
	}, "m", 0, 0)
	_, err := client.Complete(context.Background(), "", "x")
	require.ErrorIs(t, err, boom)

	empty := llm.NewClient(&llmmock.Provider{Replies: []string{"   "}}, "m", 0, 0)
	_, err = empty.Complete(context.Background(), "", "x")
	require.Error(t, err)
}
