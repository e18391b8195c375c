// Package assistant answers questions addressed to the assistant participant.
// Answers go back privately to the asker, they are never broadcast.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"polyglot-chat/observability"
	"strings"
	"time"
)

const (
	DefaultName        = "Assistant"
	UnavailableMessage = "The assistant is unavailable right now, please try again later."
)

type Bridge struct {
	log        *slog.Logger
	answerer   contract.Answerer
	deliverer  contract.Deliverer
	monitoring *observability.MonitoringManager
	name       string
	timeout    time.Duration
}

func NewBridge(log *slog.Logger, answerer contract.Answerer, deliverer contract.Deliverer,
	monitoring *observability.MonitoringManager, name string, timeout time.Duration) *Bridge {
	if name == "" {
		name = DefaultName
	}
	return &Bridge{
		log:        log,
		answerer:   answerer,
		deliverer:  deliverer,
		monitoring: monitoring,
		name:       name,
		timeout:    timeout,
	}
}

// Ask sends exactly one frame to the asker: the answer as an ai_chat frame,
// or a system frame when no answer could be produced in time.
func (b *Bridge) Ask(ctx context.Context, asker domain.Participant, question string) error {
	answer, err := b.answer(ctx, question, asker.Lang)
	if err != nil {
		b.monitoring.IncrAssistantFailures()
		b.log.Warn("Assistant failed to answer", "handle", asker.Handle, "lang", asker.Lang, "error", err)
		if deliverErr := b.deliverer.Deliver(ctx, asker, domain.NewSystemFrame(UnavailableMessage)); deliverErr != nil {
			b.log.Debug("Assistant failure notice not delivered", "handle", asker.Handle, "error", deliverErr)
		}
		return err
	}

	b.monitoring.IncrAssistantAnswers()
	return b.deliverer.Deliver(ctx, asker, domain.NewAIChatFrame(b.name, question, answer, asker.Lang))
}

func (b *Bridge) answer(ctx context.Context, question, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	answer, err := b.answerer.Answer(ctx, question, lang)
	switch {
	case err == nil:
	case errors.Is(err, errors.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return "", errors.Assistant("answer", errors.ErrTimeout)
	case errors.Is(err, errors.ErrServiceUnavailable):
		return "", errors.Assistant("answer", err)
	default:
		return "", errors.Assistant("answer", fmt.Errorf("%w: %v", errors.ErrServiceUnavailable, err))
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", errors.Assistant("answer", fmt.Errorf("%w: empty answer", errors.ErrServiceUnavailable))
	}
	return answer, nil
}
