package agent

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/animus-coder/autofix/internal/llm"
	"github.com/animus-coder/autofix/internal/observability"
)

const (
	stageAnalyze = "analyze"
	stagePatch   = "patch"
)

type providerNamer interface {
	ProviderName() string
}

// complete performs one completion call, recording latency and failures.
func complete(ctx context.Context, c llm.Completer, m *observability.Metrics, log *zap.Logger, stage, system, prompt string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("%w: no completion backend configured", ErrLLMCall)
	}
	provider := ""
	if n, ok := c.(providerNamer); ok {
		provider = n.ProviderName()
	}

	start := time.Now()
	reply, err := c.Complete(ctx, system, prompt)
	dur := time.Since(start)
	m.RecordLLMCall(stage, provider, dur, err != nil)
	if err != nil {
		log.Error("llm call failed", zap.String("stage", stage), zap.String("provider", provider), zap.Error(err))
		return "", fmt.Errorf("%w (%s): %v", ErrLLMCall, stage, err)
	}
	log.Debug("llm call finished",
		zap.String("stage", stage),
		zap.String("provider", provider),
		zap.Duration("duration", dur),
		zap.Int("reply_chars", len(reply)),
	)
	return reply, nil
}
