package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/animus-coder/autofix/internal/llm"
	llmmock "github.com/animus-coder/autofix/internal/llm/mock"
	"github.com/animus-coder/autofix/internal/observability"
	"github.com/animus-coder/autofix/internal/tools"
)

const diagnosisReply = "```json\n{\"error_type\":\"RuntimeError\",\"location\":\"main.sh:1\",\"explanation\":\"script exits non-zero\",\"fix_hint\":\"exit 0\"}\n```"

func patchReply(body string) string {
	return "```bash\n" + body + "\n```"
}

type fixture struct {
	dir      string
	target   string
	provider *llmmock.Provider
	metrics  *observability.Metrics
	wf       *Workflow
}

func newFixture(t *testing.T, script string, writable bool, replies ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	target := filepath.Join(dir, "main.sh")
	require.NoError(t, os.WriteFile(target, []byte(script), 0o644))

	provider := &llmmock.Provider{Replies: replies}
	client := llm.NewClient(provider, "test-model", 0, 0)
	fs, err := tools.NewFilesystem(dir, writable)
	require.NoError(t, err)
	metrics := observability.NewMetrics()

	wf := &Workflow{
		Runner: &tools.Runner{
			Interpreter: func(string) []string { return []string{"sh"} },
			Timeout:     5 * time.Second,
		},
		Analyzer: &Analyzer{LLM: client, Metrics: metrics},
		Patcher:  &Patcher{LLM: client, FS: fs, Metrics: metrics},
		FS:       fs,
		Metrics:  metrics,
	}
	return &fixture{dir: dir, target: target, provider: provider, metrics: metrics, wf: wf}
}

func TestNextRouting(t *testing.T) {
	ok := &tools.ExecResult{ExitCode: 0}
	bad := &tools.ExecResult{ExitCode: 1}

	st := &State{Step: StepRoute, Last: ok, MaxRetry: 3}
	require.Equal(t, StepEnd, Next(st))
	require.True(t, st.Fixed)
	require.Zero(t, st.RetryCount)

	st = &State{Step: StepRoute, Last: bad, MaxRetry: 2, RetryCount: 1}
	require.Equal(t, StepDebug, Next(st))
	require.Equal(t, 2, st.RetryCount)

	st = &State{Step: StepRoute, Last: bad, MaxRetry: 2, RetryCount: 2}
	require.Equal(t, StepEnd, Next(st))
	require.False(t, st.Fixed)
	require.Equal(t, 2, st.RetryCount)

	st = &State{Step: StepRoute, Last: &tools.ExecResult{TimedOut: true}, MaxRetry: 1}
	require.Equal(t, StepDebug, Next(st))

	st = &State{Step: StepEnd}
	require.Equal(t, StepEnd, Next(st))

	chain := []Step{StepStart, StepTest, StepDebug, StepAnalyze, StepPatch}
	want := []Step{StepTest, StepRoute, StepAnalyze, StepPatch, StepTest}
	for i, s := range chain {
		require.Equal(t, want[i], Next(&State{Step: s}), "from %s", s)
	}
}

func TestWorkflowSucceedsWithoutLLM(t *testing.T) {
	f := newFixture(t, "echo hello\n", true)

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 3))
	require.NoError(t, err)
	require.True(t, st.Fixed)
	require.Zero(t, st.RetryCount)
	require.Len(t, st.Attempts, 1)
	require.Equal(t, "hello", strings.TrimSpace(st.Last.Stdout))
	require.Zero(t, f.provider.Calls())
	require.NoDirExists(t, filepath.Join(f.dir, tools.AfterDebugDir))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("fixed")))
}

func TestWorkflowZeroBudgetNeverCallsLLM(t *testing.T) {
	f := newFixture(t, "exit 1\n", true)

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 0))
	require.NoError(t, err)
	require.False(t, st.Fixed)
	require.Zero(t, st.RetryCount)
	require.Len(t, st.Attempts, 1)
	require.Zero(t, f.provider.Calls())
	require.Equal(t, StepEnd, st.Step)
}

func TestWorkflowExhaustsBudget(t *testing.T) {
	f := newFixture(t, "exit 1\n", true,
		diagnosisReply, patchReply("echo still broken >&2\nexit 3"),
		diagnosisReply, patchReply("echo still broken >&2\nexit 3"),
	)

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 2))
	require.NoError(t, err)
	require.False(t, st.Fixed)
	require.Equal(t, 2, st.RetryCount)
	require.Len(t, st.Attempts, 3)
	require.Equal(t, 4, f.provider.Calls())
	require.Equal(t, 3, st.Last.ExitCode)
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Retries))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("exhausted")))

	entries, err := os.ReadDir(filepath.Join(f.dir, tools.AfterDebugDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "main.sh", entries[0].Name())

	original, err := os.ReadFile(f.target)
	require.NoError(t, err)
	require.Equal(t, "exit 1\n", string(original))
}

func TestWorkflowFixedOnSecondPatch(t *testing.T) {
	f := newFixture(t, "echo boom >&2\nexit 1\n", true,
		diagnosisReply, patchReply("exit 2"),
		diagnosisReply, patchReply("echo fixed"),
	)

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 2))
	require.NoError(t, err)
	require.True(t, st.Fixed)
	require.Equal(t, 2, st.RetryCount)
	require.Len(t, st.Attempts, 3)
	require.Equal(t, "echo fixed", st.Source)
	require.Equal(t, filepath.Join(f.dir, tools.AfterDebugDir, "main.sh"), st.PatchedPath)
	require.Equal(t, st.PatchedPath, st.ExecPath)
	require.Empty(t, st.Attempts[0].PatchDigest)
	require.Equal(t, Digest("echo fixed"), st.Attempts[2].PatchDigest)
	require.NotEqual(t, st.Attempts[1].PatchDigest, st.Attempts[2].PatchDigest)

	// The second analysis sees the patched source and its failure.
	reqs := f.provider.Requests()
	require.Len(t, reqs, 4)
	first := reqs[0].Messages[len(reqs[0].Messages)-1].Content
	require.Contains(t, first, "boom")
	third := reqs[2].Messages[len(reqs[2].Messages)-1].Content
	require.Contains(t, third, "exit 2")
	require.Contains(t, third, "exited with code 2")

	entries, err := os.ReadDir(filepath.Join(f.dir, tools.AfterDebugDir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWorkflowLLMErrorIsFatal(t *testing.T) {
	f := newFixture(t, "exit 1\n", true)
	f.provider.ChatFn = func(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
		return llm.ChatResponse{}, errors.New("rate limited")
	}

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 3))
	require.ErrorIs(t, err, ErrLLMCall)
	require.False(t, st.Fixed)
	require.Equal(t, 1, st.RetryCount)
	require.Len(t, st.Attempts, 1)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.LLMFailures.WithLabelValues(stageAnalyze, "mock")))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("error")))
}

func TestWorkflowUnparseableDiagnosis(t *testing.T) {
	f := newFixture(t, "exit 1\n", true, "I think the problem is on line 1.")

	_, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 1))
	require.ErrorIs(t, err, ErrDiagnosisParse)
	require.Equal(t, 1, f.provider.Calls())
}

func TestWorkflowEmptyPatch(t *testing.T) {
	f := newFixture(t, "exit 1\n", true, diagnosisReply, "```bash\n```")

	_, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 1))
	require.ErrorIs(t, err, ErrPatchParse)
	require.NoDirExists(t, filepath.Join(f.dir, tools.AfterDebugDir))
}

func TestWorkflowPatchWriteFailureIsFatal(t *testing.T) {
	f := newFixture(t, "exit 1\n", false, diagnosisReply, patchReply("echo ok"))

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 3))
	require.ErrorIs(t, err, ErrPatchWrite)
	require.Equal(t, 1, st.RetryCount)
	require.Len(t, st.Attempts, 1)
	require.Equal(t, f.target, st.ExecPath)
}

func TestWorkflowTimeoutDrivesRetry(t *testing.T) {
	f := newFixture(t, "sleep 5\n", true, diagnosisReply, patchReply("echo done"))
	f.wf.Runner = &tools.Runner{
		Interpreter: func(string) []string { return []string{"sh"} },
		Timeout:     300 * time.Millisecond,
	}

	st, err := f.wf.Run(context.Background(), NewState(f.target, f.dir, 1))
	require.NoError(t, err)
	require.True(t, st.Fixed)
	require.True(t, st.Attempts[0].TimedOut)
	require.Equal(t, -1, st.Attempts[0].ExitCode)

	prompt := f.provider.Requests()[0].Messages[1].Content
	require.Contains(t, prompt, "timed out")
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Executions.WithLabelValues("timeout")))
}

func TestWorkflowMissingTarget(t *testing.T) {
	f := newFixture(t, "exit 0\n", true)

	_, err := f.wf.Run(context.Background(), NewState(filepath.Join(f.dir, "absent.sh"), f.dir, 1))
	require.Error(t, err)
	require.Zero(t, f.provider.Calls())
}

func TestWorkflowStopsWhenCancelledBeforeStart(t *testing.T) {
	f := newFixture(t, "exit 1\n", true, diagnosisReply, patchReply("echo ok"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	st, err := f.wf.Run(ctx, NewState(f.target, f.dir, 3))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, st.Attempts)
	require.Zero(t, f.provider.Calls())
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Runs.WithLabelValues("error")))
}

func TestWorkflowInterruptedExecutionSkipsAnalysis(t *testing.T) {
	f := newFixture(t, "sleep 30\n", true, diagnosisReply, patchReply("echo ok"))
	f.wf.Runner = &tools.Runner{
		Interpreter: func(string) []string { return []string{"sh"} },
		Timeout:     20 * time.Second,
	}
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(200*time.Millisecond, cancel)

	st, err := f.wf.Run(ctx, NewState(f.target, f.dir, 3))
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, f.provider.Calls())
	require.Zero(t, st.RetryCount)
	require.NoDirExists(t, filepath.Join(f.dir, tools.AfterDebugDir))
}
