package agent

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
)

// RunReport summarizes one repair run for later inspection.
type RunReport struct {
	RunID       string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  time.Time  `json:"finished_at"`
	Status      string     `json:"status"`
	Target      string     `json:"target"`
	Language    string     `json:"language"`
	PatchedFile string     `json:"patched_file,omitempty"`
	Retries     int        `json:"retries"`
	MaxRetry    int        `json:"max_retry"`
	Attempts    []Attempt  `json:"attempts"`
	Diagnosis   *Diagnosis `json:"last_diagnosis,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// NewReport builds a report from a finished (or aborted) state.
func NewReport(st *State, started, finished time.Time, runErr error) *RunReport {
	r := &RunReport{
		RunID:       ulid.Make().String(),
		StartedAt:   started.UTC(),
		FinishedAt:  finished.UTC(),
		Status:      st.Outcome(),
		Target:      st.TargetPath,
		Language:    st.Language.Name,
		PatchedFile: st.PatchedPath,
		Retries:     st.RetryCount,
		MaxRetry:    st.MaxRetry,
		Attempts:    st.Attempts,
		Diagnosis:   st.Diagnosis,
	}
	if r.Attempts == nil {
		r.Attempts = []Attempt{}
	}
	if runErr != nil {
		r.Status = "error"
		r.Error = runErr.Error()
	}
	return r
}

// Save writes the report as <dir>/<run id>.json and returns the path.
func (r *RunReport) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode report: %w", err)
	}
	path := filepath.Join(dir, r.RunID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
