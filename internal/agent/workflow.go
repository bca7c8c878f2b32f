package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/logging"
	"github.com/animus-coder/autofix/internal/observability"
	"github.com/animus-coder/autofix/internal/tools"
)

// Executor runs one file and reports its outcome.
type Executor interface {
	Run(ctx context.Context, path string) (tools.ExecResult, error)
}

// Workflow drives the run, analyze, patch, re-run loop.
type Workflow struct {
	Runner   Executor
	Analyzer *Analyzer
	Patcher  *Patcher
	FS       *tools.Filesystem
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// Run advances st until StepEnd. The returned error is non-nil only for
// failures that stop the loop outright: the target cannot be read or started,
// an LLM call or its reply fails, the patch cannot be written, or ctx is
// cancelled.
func (w *Workflow) Run(ctx context.Context, st *State) (*State, error) {
	log := logging.OrNop(w.Logger).With(zap.String("target", st.TargetPath))
	started := time.Now()

	for {
		log.Debug("step", zap.Stringer("step", st.Step), zap.Int("retry", st.RetryCount))

		if err := ctx.Err(); err != nil && st.Step != StepEnd {
			log.Warn("run interrupted", zap.Stringer("step", st.Step))
			return w.fail(st, started, fmt.Errorf("interrupted before %s: %w", st.Step, err))
		}

		switch st.Step {
		case StepStart:
			if err := w.load(st); err != nil {
				return w.fail(st, started, err)
			}
			log.Info("repair started",
				zap.String("language", st.Language.Name),
				zap.Int("max_retry", st.MaxRetry),
			)

		case StepTest:
			res, err := w.Runner.Run(ctx, st.ExecPath)
			if err != nil {
				return w.fail(st, started, err)
			}
			st.Last = &res
			st.Attempts = append(st.Attempts, Attempt{
				ExecPath:    st.ExecPath,
				ExitCode:    res.ExitCode,
				TimedOut:    res.TimedOut,
				Duration:    res.Duration,
				PatchDigest: st.PatchDigest,
			})
			w.Metrics.RecordExecution(res.Outcome(), res.Duration)

		case StepRoute:
			// Next applies the routing rule.

		case StepDebug:
			w.Metrics.RecordRetry()
			log.Info("debug cycle", zap.Int("retry", st.RetryCount), zap.Int("max_retry", st.MaxRetry))

		case StepAnalyze:
			d, err := w.Analyzer.Analyze(ctx, st)
			if err != nil {
				return w.fail(st, started, err)
			}
			st.Diagnosis = &d

		case StepPatch:
			if _, err := w.Patcher.Patch(ctx, st); err != nil {
				return w.fail(st, started, err)
			}

		case StepEnd:
			w.Metrics.RecordRun(st.Outcome(), time.Since(started))
			if st.Fixed {
				log.Info("target fixed", zap.Int("retries", st.RetryCount), zap.String("path", st.ExecPath))
			} else {
				log.Warn("retry budget exhausted", zap.Int("retries", st.RetryCount))
			}
			return st, nil
		}

		st.Step = Next(st)
	}
}

func (w *Workflow) load(st *State) error {
	if st.Source != "" {
		return nil
	}
	read := os.ReadFile
	if w.FS != nil {
		read = func(p string) ([]byte, error) {
			s, err := w.FS.ReadFile(p)
			return []byte(s), err
		}
	}
	data, err := read(st.TargetPath)
	if err != nil {
		return fmt.Errorf("read target: %w", err)
	}
	st.Source = string(data)
	return nil
}

func (w *Workflow) fail(st *State, started time.Time, err error) (*State, error) {
	w.Metrics.RecordRun("error", time.Since(started))
	return st, err
}

// Outcome labels a finished state as fixed or exhausted.
func (s *State) Outcome() string {
	if s.Fixed {
		return "fixed"
	}
	return "exhausted"
}
