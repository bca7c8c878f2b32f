package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/logging"
	"github.com/animus-coder/autofix/internal/observability"
)

const diagnosisSchema = `{
  "type": "object",
  "required": ["error_type", "location", "explanation"],
  "properties": {
    "error_type":  {"type": "string", "minLength": 1},
    "location":    {"type": "string"},
    "explanation": {"type": "string", "minLength": 1},
    "fix_hint":    {"type": "string"}
  }
}`

var diagnosisValidator = mustCompileSchema(diagnosisSchema)

func mustCompileSchema(schema string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("diagnosis.json", strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return c.MustCompile("diagnosis.json")
}

// Analyzer turns a failed execution into a Diagnosis with one completion call.
type Analyzer struct {
	LLM     llm.Completer
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Analyze diagnoses st.Last against st.Source.
func (a *Analyzer) Analyze(ctx context.Context, st *State) (Diagnosis, error) {
	log := logging.OrNop(a.Logger)
	reply, err := complete(ctx, a.LLM, a.Metrics, log, stageAnalyze,
		buildAnalyzeSystemPrompt(st.Language.Name), buildAnalyzeUserPrompt(st))
	if err != nil {
		return Diagnosis{}, err
	}

	d, err := ParseDiagnosis(reply)
	if err != nil {
		log.Warn("unparseable diagnosis", zap.String("reply", truncate(reply, 500)))
		return Diagnosis{}, err
	}
	log.Info("diagnosis ready",
		zap.String("error_type", d.ErrorType),
		zap.String("location", d.Location),
	)
	return d, nil
}

// ParseDiagnosis extracts the first JSON object in reply and validates it.
func ParseDiagnosis(reply string) (Diagnosis, error) {
	raw, ok := extractJSONObject(reply)
	if !ok {
		return Diagnosis{}, fmt.Errorf("%w: no JSON object in reply", ErrDiagnosisParse)
	}

	var doc any
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return Diagnosis{}, fmt.Errorf("%w: %v", ErrDiagnosisParse, err)
	}
	if err := diagnosisValidator.Validate(doc); err != nil {
		return Diagnosis{}, fmt.Errorf("%w: %v", ErrDiagnosisParse, err)
	}

	var d Diagnosis
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return Diagnosis{}, fmt.Errorf("%w: %v", ErrDiagnosisParse, err)
	}
	return d, nil
}

// extractJSONObject returns the first balanced {...} span that is valid
// JSON. Code fences around the object are ignored.
func extractJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		if end, ok := matchBrace(s, start); ok && json.Valid([]byte(s[start:end+1])) {
			return s[start : end+1], true
		}
	}
	return "", false
}

// matchBrace finds the brace closing s[start], skipping braces inside JSON strings.
func matchBrace(s string, start int) (int, bool) {
	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	return s[:limit] + "... [truncated]"
}
