package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/agent"
	"github.com/animus-coder/autofix/internal/config"
	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/llm/configbuilder"
	"github.com/animus-coder/autofix/internal/logging"
	"github.com/animus-coder/autofix/internal/observability"
	"github.com/animus-coder/autofix/internal/tools"
	"github.com/animus-coder/autofix/internal/workspace"
)

func runFix(cmd *cobra.Command, opts *Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if opts.MaxRetry >= 0 {
		cfg.MaxRetry = opts.MaxRetry
	}

	logger, err := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck // best-effort

	fs, err := tools.NewFilesystem(cfg.Workspace.Path, true)
	if err != nil {
		return err
	}
	target, err := resolveTarget(opts.File, cfg, logger)
	if err != nil {
		return err
	}

	// Budget zero never reaches the LLM, so a missing key is not an error then.
	var completer llm.Completer
	if cfg.MaxRetry > 0 {
		client, err := configbuilder.BuildClientWithRegistry(opts.registry, cfg)
		if err != nil {
			return fmt.Errorf("build llm client: %w", err)
		}
		completer = client
		logger.Info("llm ready", zap.String("provider", client.ProviderName()), zap.String("model", cfg.Model))
	}

	metrics := observability.NewMetrics()

	wf := &agent.Workflow{
		Runner: &tools.Runner{
			Interpreter: cfg.InterpreterFor,
			Timeout:     cfg.ExecTimeout(),
			Logger:      logger.Named("runner"),
		},
		Analyzer: &agent.Analyzer{LLM: completer, Metrics: metrics, Logger: logger.Named("analyzer")},
		Patcher:  &agent.Patcher{LLM: completer, FS: fs, Metrics: metrics, Logger: logger.Named("patcher")},
		FS:       fs,
		Metrics:  metrics,
		Logger:   logger.Named("workflow"),
	}

	started := time.Now()
	st, runErr := wf.Run(cmd.Context(), agent.NewState(target, fs.BaseDir(), cfg.MaxRetry))

	reportPath := ""
	if cfg.Report.Enabled {
		report := agent.NewReport(st, started, time.Now(), runErr)
		if reportPath, err = report.Save(cfg.ReportDir()); err != nil {
			logger.Warn("save run report", zap.Error(err))
		}
	}

	metricsPath := opts.MetricsFile
	if metricsPath == "" {
		metricsPath = cfg.Metrics.Textfile
	}
	if err := metrics.WriteTextfile(metricsPath); err != nil {
		logger.Warn("write metrics", zap.Error(err))
	}

	printSummary(cmd, st, reportPath)

	if runErr != nil {
		return runErr
	}
	if !st.Fixed {
		return ErrNotFixed
	}
	return nil
}

// resolveTarget honours --file, otherwise scans the workspace.
func resolveTarget(file string, cfg *config.Config, logger *zap.Logger) (string, error) {
	if file != "" {
		abs, err := filepath.Abs(file)
		if err != nil {
			return "", err
		}
		info, err := os.Stat(abs)
		if err != nil || !info.Mode().IsRegular() {
			return "", fmt.Errorf("%w: %s", workspace.ErrEntryNotFound, file)
		}
		return abs, nil
	}
	scanner := workspace.Scanner{
		Dir:       cfg.Workspace.Path,
		EntryFile: cfg.Workspace.EntryFile,
		Patterns:  cfg.Workspace.Patterns,
		Logger:    logger.Named("scanner"),
	}
	target, err := scanner.Find()
	if err != nil {
		return "", err
	}
	return filepath.Abs(target)
}

const summaryTailLines = 20

func tailLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func printSummary(cmd *cobra.Command, st *agent.State, reportPath string) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "target:  %s\n", st.TargetPath)
	fmt.Fprintf(out, "fixed:   %v\n", st.Fixed)
	fmt.Fprintf(out, "retries: %d/%d\n", st.RetryCount, st.MaxRetry)
	if st.PatchedPath != "" {
		fmt.Fprintf(out, "patched: %s\n", st.PatchedPath)
	}
	if reportPath != "" {
		fmt.Fprintf(out, "report:  %s\n", reportPath)
	}
	if !st.Fixed && st.Last != nil {
		if output := st.Last.Combined(); output != "" {
			fmt.Fprintf(out, "last output:\n%s\n", tailLines(output, summaryTailLines))
		}
	}
}
