package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/animus-coder/autofix/internal/tools"
)

const maxFailureChars = 8000

// buildAnalyzeSystemPrompt asks for a JSON diagnosis.
func buildAnalyzeSystemPrompt(language string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are a senior %s engineer debugging a program that failed to run.
Identify the error type, the root cause and where it happens, and suggest a fix.
Respond with a single JSON object and nothing else:
{"error_type":"...","location":"file:line or function","explanation":"root cause","fix_hint":"how to fix it"}`, language))
}

func buildAnalyzeUserPrompt(st *State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source (%s):\n```%s\n%s\n```\n\n", st.Language.Name, st.Language.Fence, st.Source)
	fmt.Fprintf(&b, "Failure:\n```\n%s\n```\n", failureText(st.Last))
	return b.String()
}

// buildPatchSystemPrompt asks for the full corrected file in one fenced block.
func buildPatchSystemPrompt(language, fence string) string {
	return strings.TrimSpace(fmt.Sprintf(`
You are a senior %s engineer. Fix the bug described in the analysis.
Output the complete corrected %s file without omitting any line.
Put the code in a single `+"```%s"+` block and write nothing outside it.`, language, language, fence))
}

func buildPatchUserPrompt(st *State) string {
	var b strings.Builder
	fence := st.Language.Fence
	fmt.Fprintf(&b, "Buggy code:\n```%s\n%s\n```\n\n", fence, st.Source)
	fmt.Fprintf(&b, "Failure:\n```\n%s\n```\n\n", failureText(st.Last))
	if d := st.Diagnosis; d != nil {
		b.WriteString("Analysis:\n")
		fmt.Fprintf(&b, "- error type: %s\n", d.ErrorType)
		fmt.Fprintf(&b, "- location: %s\n", d.Location)
		fmt.Fprintf(&b, "- explanation: %s\n", d.Explanation)
		if strings.TrimSpace(d.FixHint) != "" {
			fmt.Fprintf(&b, "- fix hint: %s\n", d.FixHint)
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Return the complete corrected %s code in a ```%s block.", st.Language.Name, fence)
	return b.String()
}

// failureText picks stderr, then stdout, then a timeout notice.
func failureText(res *tools.ExecResult) string {
	if res == nil {
		return "(no execution result)"
	}
	var text string
	switch {
	case strings.TrimSpace(res.Stderr) != "":
		text = res.Stderr
	case strings.TrimSpace(res.Stdout) != "":
		text = res.Stdout
	case res.TimedOut:
		return fmt.Sprintf("execution timed out after %s without output", res.Duration.Round(time.Millisecond))
	default:
		return fmt.Sprintf("process exited with code %d and produced no output", res.ExitCode)
	}
	if res.TimedOut {
		text += "\n(execution timed out)"
	}
	if len(text) > maxFailureChars {
		text = "... [truncated]\n" + text[len(text)-maxFailureChars:]
	}
	return text
}
