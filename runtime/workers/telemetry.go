package workers

import (
	"context"
	"log/slog"
	"os"
	"polyglot-chat/contract"
	"polyglot-chat/observability"
	"time"

	"github.com/shirou/gopsutil/process"
)

var _ contract.Worker = (*TelemetryWorker)(nil)

// ProcessSampler reads CPU and memory usage of the relay process.
type ProcessSampler interface {
	Sample() (observability.ProcessMetrics, error)
}

type gopsutilSampler struct {
	proc *process.Process
}

func NewProcessSampler() (ProcessSampler, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return gopsutilSampler{proc: proc}, nil
}

func (s gopsutilSampler) Sample() (observability.ProcessMetrics, error) {
	cpu, err := s.proc.CPUPercent()
	if err != nil {
		return observability.ProcessMetrics{}, err
	}
	mem, err := s.proc.MemoryInfo()
	if err != nil {
		return observability.ProcessMetrics{}, err
	}
	return observability.ProcessMetrics{CPUPercent: cpu, RSSBytes: mem.RSS}, nil
}

// TelemetryWorker refreshes the monitoring snapshot every metricInterval.
type TelemetryWorker struct {
	log            *slog.Logger
	metricInterval time.Duration
	monitoring     *observability.MonitoringManager
	registry       contract.ISessionRegistry
	sampler        ProcessSampler
}

func NewTelemetryWorker(log *slog.Logger,
	metricInterval time.Duration,
	monitoring *observability.MonitoringManager,
	registry contract.ISessionRegistry,
	sampler ProcessSampler) *TelemetryWorker {
	return &TelemetryWorker{
		log:            log,
		metricInterval: metricInterval,
		monitoring:     monitoring,
		registry:       registry,
		sampler:        sampler,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	w.refresh()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping telemetry")
			return nil
		case <-ticker.C:
			w.refresh()
		}
	}
}

func (w *TelemetryWorker) refresh() {
	var proc observability.ProcessMetrics
	if w.sampler != nil {
		sampled, err := w.sampler.Sample()
		if err != nil {
			w.log.Debug("Process metrics unavailable", "error", err)
		} else {
			proc = sampled
		}
	}
	w.monitoring.Refresh(w.registry.Len(), proc)
}
