package workers

import (
	"context"
	"log/slog"
	"polyglot-chat/contract"
	"polyglot-chat/observability"
	"reflect"
	"time"
)

// highWaterMark is the fill ratio above which a queue is reported as congested.
const highWaterMark = 0.8

var _ contract.Worker = (*ChannelCapacityWorker)(nil)

type NamedChannel struct {
	Name    string
	Channel any
}

// ChannelCapacityWorker periodically samples the length and capacity of the relay queues.
// len and cap never block, a sample may be slightly stale.
type ChannelCapacityWorker struct {
	log            *slog.Logger
	channels       []NamedChannel
	monitoring     *observability.MonitoringManager
	metricInterval time.Duration
}

func NewChannelCapacityWorker(log *slog.Logger,
	channels []NamedChannel, monitoring *observability.MonitoringManager,
	metricInterval time.Duration) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:            log,
		channels:       channels,
		monitoring:     monitoring,
		metricInterval: metricInterval,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping channel sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		w.monitoring.SetQueueDepth(nc.Name, length, capacity)
		if capacity > 0 && float64(length) >= highWaterMark*float64(capacity) {
			w.log.Warn("Relay queue congested", "name", nc.Name, "length", length, "capacity", capacity)
		}
	}
}
