package observability

import (
	"log/slog"
	"maps"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MonitoringStats is the snapshot served on /stats.
type MonitoringStats struct {
	// --- RELAY METRICS ---
	Participants      int    `json:"participants"`
	FramesReceived    uint64 `json:"frames_received"`
	ProtocolErrors    uint64 `json:"protocol_errors"`
	Joins             uint64 `json:"joins"`
	Leaves            uint64 `json:"leaves"`
	Relays            uint64 `json:"relays"`
	DeliveryFailures  uint64 `json:"delivery_failures"`
	CensoredMessages  uint64 `json:"censored_messages"`
	TranslationCalls  uint64 `json:"translation_calls"`
	CacheHits         uint64 `json:"cache_hits"`
	Degradations      uint64 `json:"degradations"`
	AssistantAnswers  uint64 `json:"assistant_answers"`
	AssistantFailures uint64 `json:"assistant_failures"`

	// --- SYSTEM METRICS ---
	CPUPercent float64   `json:"cpu_percent"`
	RSSMb      uint64    `json:"rss_mb"`
	AllocMemMb uint64    `json:"alloc_mem_mb"`
	NumGC      uint32    `json:"num_gc"`
	Goroutines int       `json:"goroutines"`
	UpdatedAt  time.Time `json:"updated_at"`

	// --- QUEUES ---
	Queues []QueueDepth `json:"queues"`
}

// QueueDepth is the last sampled backlog of one internal channel.
type QueueDepth struct {
	Name     string `json:"name"`
	Length   int    `json:"length"`
	Capacity int    `json:"capacity"`
}

// ProcessMetrics is what the telemetry worker samples from the OS.
type ProcessMetrics struct {
	CPUPercent float64
	RSSBytes   uint64
}

// MonitoringManager aggregates the relay counters.
// Counters are safe for concurrent use, the snapshot is refreshed periodically.
type MonitoringManager struct {
	log         *slog.Logger
	mu          sync.RWMutex
	latestStats MonitoringStats
	queues      map[string]QueueDepth

	framesReceived    atomic.Uint64
	protocolErrors    atomic.Uint64
	joins             atomic.Uint64
	leaves            atomic.Uint64
	relays            atomic.Uint64
	deliveryFailures  atomic.Uint64
	censoredMessages  atomic.Uint64
	translationCalls  atomic.Uint64
	cacheHits         atomic.Uint64
	degradations      atomic.Uint64
	assistantAnswers  atomic.Uint64
	assistantFailures atomic.Uint64
}

func NewMonitoringManager(log *slog.Logger) *MonitoringManager {
	return &MonitoringManager{log: log, queues: make(map[string]QueueDepth)}
}

func (mm *MonitoringManager) IncrFramesReceived()    { mm.framesReceived.Add(1) }
func (mm *MonitoringManager) IncrProtocolErrors()    { mm.protocolErrors.Add(1) }
func (mm *MonitoringManager) IncrJoins()             { mm.joins.Add(1) }
func (mm *MonitoringManager) IncrLeaves()            { mm.leaves.Add(1) }
func (mm *MonitoringManager) IncrRelays()            { mm.relays.Add(1) }
func (mm *MonitoringManager) IncrDeliveryFailures()  { mm.deliveryFailures.Add(1) }
func (mm *MonitoringManager) IncrCensoredMessages()  { mm.censoredMessages.Add(1) }
func (mm *MonitoringManager) IncrTranslationCalls()  { mm.translationCalls.Add(1) }
func (mm *MonitoringManager) IncrCacheHits()         { mm.cacheHits.Add(1) }
func (mm *MonitoringManager) IncrDegradations()      { mm.degradations.Add(1) }
func (mm *MonitoringManager) IncrAssistantAnswers()  { mm.assistantAnswers.Add(1) }
func (mm *MonitoringManager) IncrAssistantFailures() { mm.assistantFailures.Add(1) }

// SetQueueDepth records the backlog of a named channel for the next snapshot.
func (mm *MonitoringManager) SetQueueDepth(name string, length, capacity int) {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	mm.queues[name] = QueueDepth{Name: name, Length: length, Capacity: capacity}
}

// Refresh rebuilds the snapshot from the live counters and the sampled process metrics.
func (mm *MonitoringManager) Refresh(participants int, proc ProcessMetrics) MonitoringStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	stats := MonitoringStats{
		Participants:      participants,
		FramesReceived:    mm.framesReceived.Load(),
		ProtocolErrors:    mm.protocolErrors.Load(),
		Joins:             mm.joins.Load(),
		Leaves:            mm.leaves.Load(),
		Relays:            mm.relays.Load(),
		DeliveryFailures:  mm.deliveryFailures.Load(),
		CensoredMessages:  mm.censoredMessages.Load(),
		TranslationCalls:  mm.translationCalls.Load(),
		CacheHits:         mm.cacheHits.Load(),
		Degradations:      mm.degradations.Load(),
		AssistantAnswers:  mm.assistantAnswers.Load(),
		AssistantFailures: mm.assistantFailures.Load(),
		CPUPercent:        proc.CPUPercent,
		RSSMb:             proc.RSSBytes / 1024 / 1024,
		AllocMemMb:        m.Alloc / 1024 / 1024,
		NumGC:             m.NumGC,
		Goroutines:        runtime.NumGoroutine(),
		UpdatedAt:         time.Now().UTC(),
	}

	mm.mu.Lock()
	stats.Queues = slices.SortedFunc(maps.Values(mm.queues), func(a, b QueueDepth) int {
		return strings.Compare(a.Name, b.Name)
	})
	mm.latestStats = stats
	mm.mu.Unlock()

	mm.log.Debug("Stats refreshed",
		"participants", stats.Participants,
		"relays", stats.Relays,
		"translation_calls", stats.TranslationCalls,
		"degradations", stats.Degradations,
		"rss_mb", stats.RSSMb,
	)
	return stats
}

func (mm *MonitoringManager) GetLatest() MonitoringStats {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	return mm.latestStats
}
