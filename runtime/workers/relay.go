package workers

import (
	"context"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/domain"
)

var _ contract.Worker = (*RelayWorker)(nil)

// RelayWorker drains one shard of relay commands. All commands of a sender
// land on the same shard, so a sender's messages are processed in order.
type RelayWorker struct {
	id        int
	commands  <-chan domain.RelayCommand
	processor contract.CommandProcessor
	log       *slog.Logger
}

func NewRelayWorker(
	id int,
	commands <-chan domain.RelayCommand,
	processor contract.CommandProcessor,
	log *slog.Logger) *RelayWorker {
	return &RelayWorker{
		id:        id,
		commands:  commands,
		processor: processor,
		log:       log.With("worker", id),
	}
}

func (w *RelayWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping relay worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Relay channel is closed")
				return nil
			}
			w.processor.Process(ctx, cmd)
		}
	}
}
