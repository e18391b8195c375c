package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/errors"
)

var _ contract.Answerer = (*Chain)(nil)

// Chain asks each answerer in turn until one answers.
type Chain struct {
	log       *slog.Logger
	answerers []contract.Answerer
}

func NewChain(log *slog.Logger, answerers ...contract.Answerer) *Chain {
	return &Chain{log: log, answerers: answerers}
}

func (c *Chain) Answer(ctx context.Context, question, targetLang string) (string, error) {
	for _, answerer := range c.answerers {
		answer, err := answerer.Answer(ctx, question, targetLang)
		if err == nil {
			return answer, nil
		}
		if ctx.Err() != nil {
			return "", errors.ErrTimeout
		}
		c.log.Warn("Answerer failed, trying next", "backend", fmt.Sprintf("%T", answerer), "error", err)
	}
	return "", fmt.Errorf("%w: every answerer failed", errors.ErrServiceUnavailable)
}
