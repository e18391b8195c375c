package observability

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestMonitoringManager_Refresh(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))

	// Given counters incremented from many goroutines
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mm.IncrRelays()
			mm.IncrTranslationCalls()
		}()
	}
	wg.Wait()
	mm.IncrDegradations()

	// Then nothing is published before a refresh
	req.Zero(mm.GetLatest().Relays)

	// When the snapshot is refreshed
	stats := mm.Refresh(3, ProcessMetrics{CPUPercent: 1.5, RSSBytes: 64 * 1024 * 1024})

	// Then it reflects the counters and the process metrics
	req.Equal(uint64(50), stats.Relays)
	req.Equal(uint64(50), stats.TranslationCalls)
	req.Equal(uint64(1), stats.Degradations)
	req.Equal(3, stats.Participants)
	req.Equal(uint64(64), stats.RSSMb)
	req.Equal(stats, mm.GetLatest())
}

func TestMonitoringManager_Queue_Depths_Are_Sorted(t *testing.T) {
	req := require.New(t)
	mm := NewMonitoringManager(logs.GetLoggerFromLevel(slog.LevelDebug))

	mm.SetQueueDepth("relay-1", 3, 10)
	mm.SetQueueDepth("relay-0", 1, 10)
	mm.SetQueueDepth("relay-1", 4, 10)

	stats := mm.Refresh(0, ProcessMetrics{})

	req.Equal([]QueueDepth{
		{Name: "relay-0", Length: 1, Capacity: 10},
		{Name: "relay-1", Length: 4, Capacity: 10},
	}, stats.Queues)
}
