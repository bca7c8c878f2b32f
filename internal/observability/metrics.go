package observability

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for a repair run.
type Metrics struct {
	registry       *prometheus.Registry
	Runs           *prometheus.CounterVec
	RunDuration    *prometheus.HistogramVec
	Executions     *prometheus.CounterVec
	ExecDuration   *prometheus.HistogramVec
	LLMCalls       *prometheus.CounterVec
	LLMFailures    *prometheus.CounterVec
	LLMDuration    *prometheus.HistogramVec
	Retries        prometheus.Counter
	PatchesWritten prometheus.Counter
}

// NewMetrics constructs a metrics registry with workflow collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_runs_total",
		Help: "Completed repair runs by outcome",
	}, []string{"outcome"})

	runDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofix_run_duration_seconds",
		Help:    "Repair run duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"outcome"})

	execs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_executions_total",
		Help: "Target program executions by result (success, failure, timeout)",
	}, []string{"result"})

	execDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofix_execution_duration_seconds",
		Help:    "Target program execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"result"})

	llmCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_llm_calls_total",
		Help: "LLM completion calls by workflow stage and provider",
	}, []string{"stage", "provider"})

	llmFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "autofix_llm_failures_total",
		Help: "Failed LLM completion calls by workflow stage and provider",
	}, []string{"stage", "provider"})

	llmDur := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "autofix_llm_duration_seconds",
		Help:    "LLM completion latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	}, []string{"stage", "provider"})

	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autofix_retries_total",
		Help: "Debug cycles started after a failed execution",
	})

	patches := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "autofix_patches_written_total",
		Help: "Patched files written to the after-debug directory",
	})

	reg.MustRegister(runs, runDur, execs, execDur, llmCalls, llmFailures, llmDur, retries, patches)

	return &Metrics{
		registry:       reg,
		Runs:           runs,
		RunDuration:    runDur,
		Executions:     execs,
		ExecDuration:   execDur,
		LLMCalls:       llmCalls,
		LLMFailures:    llmFailures,
		LLMDuration:    llmDur,
		Retries:        retries,
		PatchesWritten: patches,
	}
}

// RecordRun records the final outcome and total duration of a run.
func (m *Metrics) RecordRun(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if outcome == "" {
		outcome = "unknown"
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.RunDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordExecution records a single execution of the target program.
func (m *Metrics) RecordExecution(result string, duration time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.Executions.WithLabelValues(result).Inc()
	m.ExecDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordLLMCall records a completion call and whether it failed.
func (m *Metrics) RecordLLMCall(stage, provider string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	if provider == "" {
		provider = "unknown"
	}
	m.LLMCalls.WithLabelValues(stage, provider).Inc()
	m.LLMDuration.WithLabelValues(stage, provider).Observe(duration.Seconds())
	if failed {
		m.LLMFailures.WithLabelValues(stage, provider).Inc()
	}
}

// RecordRetry increments the retry counter.
func (m *Metrics) RecordRetry() {
	if m == nil {
		return
	}
	m.Retries.Inc()
}

// RecordPatchWritten increments the written patch counter.
func (m *Metrics) RecordPatchWritten() {
	if m == nil {
		return
	}
	m.PatchesWritten.Inc()
}

// WriteTextfile dumps the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
