package agent

import (
	"context"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/zeebo/blake3"
	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/logging"
	"github.com/animus-coder/autofix/internal/observability"
	"github.com/animus-coder/autofix/internal/tools"
)

var fenceRe = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[ \\t]*\\r?\\n?(.*?)```")

// Patcher asks for a corrected file and writes it to the after-debug directory.
type Patcher struct {
	LLM     llm.Completer
	FS      *tools.Filesystem
	Metrics *observability.Metrics
	Logger  *zap.Logger
}

// Patch generates a full replacement for st.Source, writes it next to the
// workspace as after_debug/<target name> and points st at the new file. The
// original target is left untouched.
func (p *Patcher) Patch(ctx context.Context, st *State) (string, error) {
	log := logging.OrNop(p.Logger)
	reply, err := complete(ctx, p.LLM, p.Metrics, log, stagePatch,
		buildPatchSystemPrompt(st.Language.Name, st.Language.Fence), buildPatchUserPrompt(st))
	if err != nil {
		return "", err
	}

	code := ExtractCode(reply, st.Language.Fence)
	if code == "" {
		return "", fmt.Errorf("%w: empty code in reply", ErrPatchParse)
	}

	digest := Digest(code)
	if digest == Digest(st.Source) {
		log.Warn("patch is identical to the current source", zap.String("digest", digest))
	}

	if p.FS == nil {
		return "", fmt.Errorf("%w: no workspace filesystem", ErrPatchWrite)
	}
	dest := p.FS.AfterDebugPath(st.TargetPath)
	if sameFile(dest, st.TargetPath) {
		return "", fmt.Errorf("%w: %s is the target itself", ErrPatchWrite, dest)
	}
	path, err := p.FS.WriteFile(dest, code)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPatchWrite, err)
	}
	p.Metrics.RecordPatchWritten()

	st.Patch = code
	st.PatchDigest = digest
	st.PatchedPath = path
	st.ExecPath = path
	st.Source = code

	log.Info("patch written",
		zap.String("path", path),
		zap.Int("chars", len(code)),
		zap.String("digest", digest),
	)
	return path, nil
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// ExtractCode pulls source code out of a reply. It prefers a block fenced
// with the given language tag, then any fenced block, then the trimmed reply.
func ExtractCode(reply, fence string) string {
	matches := fenceRe.FindAllStringSubmatch(reply, -1)
	for _, m := range matches {
		if fence != "" && strings.EqualFold(m[1], fence) {
			return strings.TrimSpace(m[2])
		}
	}
	if len(matches) > 0 {
		return strings.TrimSpace(matches[0][2])
	}
	return strings.TrimSpace(reply)
}

// Digest returns the hex blake3 digest of s.
func Digest(s string) string {
	sum := blake3.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
