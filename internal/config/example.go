package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const exampleHeader = `# autofix configuration.
# API keys are read from OPENAI_API_KEY, ANTHROPIC_API_KEY, DEEPSEEK_API_KEY
# or DASHSCOPE_API_KEY depending on the provider. Any key below can be
# overridden with AUTOFIX_<KEY>, e.g. AUTOFIX_MAX_RETRY=3.
`

// RenderExample returns a commented YAML document with the default configuration.
func RenderExample() ([]byte, error) {
	cfg := Default()
	cfg.Workspace.Interpreters = map[string]string{
		"go": "go run",
		"js": "node",
		"sh": "sh",
	}

	var buf bytes.Buffer
	buf.WriteString(exampleHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode example config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteExample writes the example configuration to path, refusing to overwrite unless force is set.
func WriteExample(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := RenderExample()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
