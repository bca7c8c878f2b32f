package agent

import (
	"time"

	"github.com/animus-coder/autofix/internal/tools"
	"github.com/animus-coder/autofix/internal/workspace"
)

// Step is a node of the repair state machine.
type Step int

const (
	StepStart Step = iota
	StepTest
	StepRoute
	StepDebug
	StepAnalyze
	StepPatch
	StepEnd
)

func (s Step) String() string {
	switch s {
	case StepStart:
		return "start"
	case StepTest:
		return "test"
	case StepRoute:
		return "route"
	case StepDebug:
		return "debug"
	case StepAnalyze:
		return "analyze"
	case StepPatch:
		return "patch"
	case StepEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Diagnosis is the structured analysis of a failed run.
type Diagnosis struct {
	ErrorType   string `json:"error_type"`
	Location    string `json:"location"`
	Explanation string `json:"explanation"`
	FixHint     string `json:"fix_hint,omitempty"`
}

// Attempt records one execution of the target and the patch that preceded it.
type Attempt struct {
	ExecPath    string        `json:"exec_path"`
	ExitCode    int           `json:"exit_code"`
	TimedOut    bool          `json:"timed_out"`
	Duration    time.Duration `json:"duration"`
	PatchDigest string        `json:"patch_digest,omitempty"`
}

// State is the mutable record carried through the workflow.
type State struct {
	TargetPath   string
	ExecPath     string
	WorkspaceDir string
	Language     workspace.Language
	Source       string

	Last        *tools.ExecResult
	Diagnosis   *Diagnosis
	Patch       string
	PatchDigest string
	PatchedPath string

	Fixed      bool
	RetryCount int
	MaxRetry   int
	Step       Step
	Attempts   []Attempt
}

// NewState prepares a state for target. The target is both the first file
// executed and the name reused for patched copies.
func NewState(target, workspaceDir string, maxRetry int) *State {
	if maxRetry < 0 {
		maxRetry = 0
	}
	return &State{
		TargetPath:   target,
		ExecPath:     target,
		WorkspaceDir: workspaceDir,
		Language:     workspace.DetectLanguage(target),
		MaxRetry:     maxRetry,
		Step:         StepStart,
	}
}

// Next returns the step following the current one. Only StepRoute inspects
// and mutates the state: it sets Fixed on success and consumes one retry
// when another debug cycle is allowed.
func Next(st *State) Step {
	switch st.Step {
	case StepStart:
		return StepTest
	case StepTest:
		return StepRoute
	case StepRoute:
		if st.Last != nil && st.Last.Success() {
			st.Fixed = true
			return StepEnd
		}
		if st.RetryCount < st.MaxRetry {
			st.RetryCount++
			return StepDebug
		}
		return StepEnd
	case StepDebug:
		return StepAnalyze
	case StepAnalyze:
		return StepPatch
	case StepPatch:
		return StepTest
	default:
		return StepEnd
	}
}
