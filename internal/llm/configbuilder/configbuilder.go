package configbuilder

import (
	"fmt"
	"os"
	"strings"

	"github.com/animus-coder/autofix/internal/config"
	"github.com/animus-coder/autofix/internal/llm"
	llmanthropic "github.com/animus-coder/autofix/internal/llm/providers/anthropic"
	llmollama "github.com/animus-coder/autofix/internal/llm/providers/ollama"
	llmopenai "github.com/animus-coder/autofix/internal/llm/providers/openai"
)

// Builtin describes a provider shipped with autofix: where it lives and which env var holds its key.
type Builtin struct {
	Name        string
	BaseURL     string
	APIKeyEnv   string
	KeyOptional bool
	Factory     llm.Factory
}

// Builtins lists the providers selectable through the `provider` config key.
func Builtins() []Builtin {
	openAICompat := func(s llm.Settings) (llm.Provider, error) {
		return llmopenai.NewProvider(s.Name, s.BaseURL, s.APIKey, s.Timeout), nil
	}
	return []Builtin{
		{Name: "openai", APIKeyEnv: "OPENAI_API_KEY", Factory: openAICompat},
		{Name: "deepseek", BaseURL: "https://api.deepseek.com", APIKeyEnv: "DEEPSEEK_API_KEY", Factory: openAICompat},
		{Name: "dashscope", BaseURL: "https://dashscope.aliyuncs.com/compatible-mode/v1", APIKeyEnv: "DASHSCOPE_API_KEY", Factory: openAICompat},
		{Name: "anthropic", APIKeyEnv: "ANTHROPIC_API_KEY", Factory: func(s llm.Settings) (llm.Provider, error) {
			return llmanthropic.NewProvider(s.Name, s.BaseURL, s.APIKey, s.Timeout), nil
		}},
		{Name: "ollama", KeyOptional: true, Factory: func(s llm.Settings) (llm.Provider, error) {
			return llmollama.NewProvider(s.Name, s.BaseURL, s.Timeout), nil
		}},
	}
}

// LookupBuiltin returns the built-in provider named name.
func LookupBuiltin(name string) (Builtin, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, s := range Builtins() {
		if s.Name == name {
			return s, true
		}
	}
	return Builtin{}, false
}

// NewRegistry returns a registry with every built-in provider registered.
func NewRegistry() *llm.Registry {
	reg := llm.NewRegistry()
	for _, s := range Builtins() {
		reg.Register(s.Name, s.Factory)
	}
	return reg
}

// ResolveSettings merges built-in defaults, config overrides and the environment.
func ResolveSettings(cfg *config.Config) (llm.Settings, error) {
	b, ok := LookupBuiltin(cfg.Provider)
	if !ok {
		return llm.Settings{}, fmt.Errorf("unsupported provider %q", cfg.Provider)
	}
	override := cfg.Providers[b.Name]

	settings := llm.Settings{
		Name:    b.Name,
		BaseURL: firstNonEmpty(override.BaseURL, b.BaseURL),
		Timeout: cfg.LLMTimeout,
	}

	envName := firstNonEmpty(override.APIKeyEnv, b.APIKeyEnv)
	if envName != "" {
		settings.APIKey = strings.TrimSpace(os.Getenv(envName))
	}
	if settings.APIKey == "" {
		settings.APIKey = strings.TrimSpace(override.APIKey)
	}
	if settings.APIKey == "" && !b.KeyOptional {
		return llm.Settings{}, fmt.Errorf("provider %s requires an API key: set %s", b.Name, envName)
	}
	return settings, nil
}

// BuildClient constructs the completion client selected by cfg.Provider.
func BuildClient(cfg *config.Config) (*llm.Client, error) {
	return BuildClientWithRegistry(NewRegistry(), cfg)
}

// BuildClientWithRegistry is BuildClient with a caller-supplied registry.
func BuildClientWithRegistry(reg *llm.Registry, cfg *config.Config) (*llm.Client, error) {
	var settings llm.Settings
	if _, builtin := LookupBuiltin(cfg.Provider); builtin {
		var err error
		settings, err = ResolveSettings(cfg)
		if err != nil {
			return nil, err
		}
	} else {
		override := cfg.Providers[strings.ToLower(strings.TrimSpace(cfg.Provider))]
		settings = llm.Settings{BaseURL: override.BaseURL, APIKey: override.APIKey, Timeout: cfg.LLMTimeout}
	}

	p, err := reg.Build(cfg.Provider, settings)
	if err != nil {
		return nil, err
	}
	return llm.NewClient(p, cfg.Model, cfg.Temperature, cfg.MaxTokens), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
