package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config describes the top-level application configuration loaded from YAML and ENV.
type Config struct {
	Provider    string                    `mapstructure:"provider" yaml:"provider" validate:"required"`
	Model       string                    `mapstructure:"model" yaml:"model" validate:"required"`
	Temperature float64                   `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxRetry    int                       `mapstructure:"max_retry" yaml:"max_retry" validate:"gte=0"`
	MaxTokens   int                       `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=0"`
	LLMTimeout  time.Duration             `mapstructure:"llm_timeout" yaml:"llm_timeout"`
	Providers   map[string]ProviderConfig `mapstructure:"providers" yaml:"providers,omitempty"`
	Workspace   WorkspaceConfig           `mapstructure:"workspace" yaml:"workspace"`
	Logging     LoggingConfig             `mapstructure:"logging" yaml:"logging"`
	Metrics     MetricsConfig             `mapstructure:"metrics" yaml:"metrics"`
	Report      ReportConfig              `mapstructure:"report" yaml:"report"`
}

// ProviderConfig overrides connection details for a single LLM provider.
type ProviderConfig struct {
	BaseURL   string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key,omitempty"`       // used only when the env var is empty
	APIKeyEnv string `mapstructure:"api_key_env" yaml:"api_key_env,omitempty"` // overrides the provider's default env var
}

// WorkspaceConfig locates the program to repair and how to execute it.
type WorkspaceConfig struct {
	Path             string            `mapstructure:"path" yaml:"path" validate:"required"`
	EntryFile        string            `mapstructure:"entry_file" yaml:"entry_file" validate:"required"`
	TimeoutSeconds   int               `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	PythonExecutable string            `mapstructure:"python_executable" yaml:"python_executable" validate:"required"`
	Patterns         []string          `mapstructure:"patterns" yaml:"patterns"`
	Interpreters     map[string]string `mapstructure:"interpreters" yaml:"interpreters,omitempty"` // extension without dot -> command line
}

// LoggingConfig controls logger behaviour.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // console or json
	Output string `mapstructure:"output" yaml:"output"` // optional file path, in addition to stderr
}

// MetricsConfig controls the Prometheus textfile export written at exit.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// ReportConfig controls the per-run JSON report.
type ReportConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Dir     string `mapstructure:"dir" yaml:"dir"` // relative paths resolve against the workspace
}

var validate = validator.New()

// Load reads configuration from the provided path or searches the default locations.
// Environment variables override file values (prefix: AUTOFIX_, dots replaced with underscores).
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUTOFIX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && path == "" {
			v.SetConfigName("config.example")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A relative workspace is anchored at the config file, not the caller's cwd.
	if used := v.ConfigFileUsed(); used != "" && !filepath.IsAbs(cfg.Workspace.Path) {
		cfg.Workspace.Path = filepath.Join(filepath.Dir(used), cfg.Workspace.Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns the configuration used when no file sets a value.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults populates sensible defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", "openai")
	v.SetDefault("model", "gpt-4o-mini")
	v.SetDefault("temperature", 0.0)
	v.SetDefault("max_retry", 5)
	v.SetDefault("max_tokens", 4096)
	v.SetDefault("llm_timeout", "120s")

	v.SetDefault("workspace.path", "workspace")
	v.SetDefault("workspace.entry_file", "main.py")
	v.SetDefault("workspace.timeout", 30)
	v.SetDefault("workspace.python_executable", "python3")
	v.SetDefault("workspace.patterns", []string{"*.py"})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.output", "")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("report.enabled", true)
	v.SetDefault("report.dir", ".autofix/runs")
}

// Validate performs sanity checks on configuration values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("config %s failed %q validation (value %v)", strings.ToLower(fe.Namespace()), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("validate config: %w", err)
	}

	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))

	if c.LLMTimeout < 0 {
		return errors.New("llm_timeout must be >= 0")
	}

	for ext, cmdline := range c.Workspace.Interpreters {
		if strings.TrimSpace(cmdline) == "" {
			return fmt.Errorf("workspace.interpreters[%q] must not be empty", ext)
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Logging.Format)) {
	case "", "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of console or json, got %q", c.Logging.Format)
	}

	if c.Report.Enabled && strings.TrimSpace(c.Report.Dir) == "" {
		return errors.New("report.dir must be set when report.enabled is true")
	}

	return nil
}

// ExecTimeout returns the per-run subprocess timeout.
func (c *Config) ExecTimeout() time.Duration {
	return time.Duration(c.Workspace.TimeoutSeconds) * time.Second
}

// InterpreterFor returns the command line used to run a file with the given extension.
func (c *Config) InterpreterFor(ext string) []string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if cmdline, ok := c.Workspace.Interpreters[ext]; ok {
		if fields := strings.Fields(cmdline); len(fields) > 0 {
			return fields
		}
	}
	return strings.Fields(c.Workspace.PythonExecutable)
}

// ReportDir resolves the report directory against the workspace.
func (c *Config) ReportDir() string {
	if filepath.IsAbs(c.Report.Dir) {
		return c.Report.Dir
	}
	return filepath.Join(c.Workspace.Path, c.Report.Dir)
}
