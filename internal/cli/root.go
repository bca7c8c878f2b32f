package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/animus-coder/autofix/internal/config"
	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/llm/configbuilder"
	"github.com/animus-coder/autofix/internal/version"
)

// Process exit codes.
const (
	ExitFixed    = 0
	ExitNotFixed = 1
	ExitFatal    = 2
)

// ErrNotFixed is returned when the retry budget ran out before the target succeeded.
var ErrNotFixed = errors.New("target still failing after retry budget")

// Options holds global CLI options.
type Options struct {
	ConfigPath  string
	File        string
	MaxRetry    int
	MetricsFile string

	registry *llm.Registry
}

// NewRootCmd constructs the base CLI command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(configbuilder.NewRegistry())
}

func newRootCmd(reg *llm.Registry) *cobra.Command {
	opts := &Options{MaxRetry: -1, registry: reg}

	cmd := &cobra.Command{
		Use:   "autofix",
		Short: "Run a program, let an LLM diagnose and patch failures, and re-run until it passes",
		Long: `autofix executes the target file, and on failure asks the configured LLM for a
diagnosis and a corrected copy written to <workspace>/after_debug/. The loop
repeats until the program succeeds or max_retry debug cycles are used.

Exit status is 0 when fixed, 1 when still failing, 2 on fatal errors.`,
		Version:       version.Full(),
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("max-retry") && opts.MaxRetry < 0 {
				return fmt.Errorf("--max-retry must be >= 0")
			}
			return runFix(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "Path to config file (default: ./config.yaml or configs/config.yaml)")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "File to repair (default: workspace entry file)")
	cmd.Flags().IntVar(&opts.MaxRetry, "max-retry", -1, "Override max_retry from config")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this textfile at exit")

	cmd.AddCommand(NewDoctorCmd(opts))
	cmd.AddCommand(NewVersionCmd())
	cmd.AddCommand(NewInitCmd())

	return cmd
}

// Execute runs the root command and exits with the matching status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, ErrNotFixed) {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(ExitCode(err))
}

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitFixed
	case errors.Is(err, ErrNotFixed):
		return ExitNotFixed
	default:
		return ExitFatal
	}
}

// loadConfig wraps config loading with shared options.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
