package workers

import (
	"context"
	"fmt"
	"log/slog"
	"polyglot-chat/mocks"
	"polyglot-chat/observability"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixedSampler struct {
	metrics observability.ProcessMetrics
	err     error
}

func (s fixedSampler) Sample() (observability.ProcessMetrics, error) { return s.metrics, s.err }

func TestTelemetryWorker_Refreshes_Snapshot(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockISessionRegistry(ctrl)
	monitoring := observability.NewMonitoringManager(log)

	// Given two participants and a sampled process
	registry.EXPECT().Len().Return(2).MinTimes(1)
	sampler := fixedSampler{metrics: observability.ProcessMetrics{CPUPercent: 12.5, RSSBytes: 32 * 1024 * 1024}}
	monitoring.IncrRelays()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewTelemetryWorker(log, 10*time.Millisecond, monitoring, registry, sampler).Run(ctx)
	}()

	// Then the snapshot is published
	req.Eventually(func() bool {
		stats := monitoring.GetLatest()
		return stats.Participants == 2 && stats.Relays == 1 && stats.RSSMb == 32
	}, time.Second, 10*time.Millisecond)

	cancel()
	req.NoError(<-done)
}

func TestTelemetryWorker_Sampler_Failure_Keeps_Counters(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockISessionRegistry(ctrl)
	monitoring := observability.NewMonitoringManager(log)

	registry.EXPECT().Len().Return(1).AnyTimes()
	worker := NewTelemetryWorker(log, time.Hour, monitoring, registry, fixedSampler{err: fmt.Errorf("no procfs")})

	worker.refresh()

	req.Equal(1, monitoring.GetLatest().Participants)
	req.Zero(monitoring.GetLatest().CPUPercent)
}

func TestProcessSampler_Reads_Own_Process(t *testing.T) {
	req := require.New(t)

	sampler, err := NewProcessSampler()
	req.NoError(err)

	metrics, err := sampler.Sample()
	req.NoError(err)
	req.Positive(metrics.RSSBytes)
}
