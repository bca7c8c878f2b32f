package cli

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/animus-coder/autofix/internal/llm/configbuilder"
	"github.com/animus-coder/autofix/internal/workspace"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration, API key, workspace and interpreter",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Provider: %s, model: %s, max_retry: %d\n", cfg.Provider, cfg.Model, cfg.MaxRetry)

			var problems []error

			if _, builtin := configbuilder.LookupBuiltin(cfg.Provider); builtin {
				if _, err := configbuilder.ResolveSettings(cfg); err != nil {
					problems = append(problems, err)
					fmt.Fprintf(out, "API key: %v\n", err)
				} else {
					fmt.Fprintln(out, "API key: ok")
				}
			} else if !opts.registry.Has(cfg.Provider) {
				err := fmt.Errorf("unsupported provider %q", cfg.Provider)
				problems = append(problems, err)
				fmt.Fprintf(out, "Provider: %v\n", err)
			}

			ext := filepath.Ext(cfg.Workspace.EntryFile)
			entry, err := workspace.FindEntryFile(cfg.Workspace.Path, cfg.Workspace.EntryFile, cfg.Workspace.Patterns)
			if err != nil {
				fmt.Fprintf(out, "Entry file: warning: %v\n", err)
			} else {
				ext = filepath.Ext(entry)
				fmt.Fprintf(out, "Entry file: %s (%s)\n", entry, workspace.DetectLanguage(entry).Name)
			}

			if sources, err := workspace.ListSources(cfg.Workspace.Path, cfg.Workspace.Patterns); err != nil {
				fmt.Fprintf(out, "Sources: warning: %v\n", err)
			} else {
				names := make([]string, 0, len(sources))
				for _, src := range sources {
					names = append(names, filepath.Base(src))
				}
				fmt.Fprintf(out, "Sources matching %v: %d %v\n", cfg.Workspace.Patterns, len(names), names)
			}

			argv := cfg.InterpreterFor(ext)
			if len(argv) == 0 {
				err := fmt.Errorf("no interpreter configured for %q", ext)
				problems = append(problems, err)
				fmt.Fprintf(out, "Interpreter: %v\n", err)
			} else if path, err := exec.LookPath(argv[0]); err != nil {
				problems = append(problems, fmt.Errorf("interpreter %s: %w", argv[0], err))
				fmt.Fprintf(out, "Interpreter: %s not found\n", argv[0])
			} else {
				fmt.Fprintf(out, "Interpreter: %s\n", path)
			}

			return errors.Join(problems...)
		},
	}
}
