package workers

import (
	"chat-relay/contract"
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// HeartbeatWorker samples the relay process and logs the relay counters.
type HeartbeatWorker struct {
	log      *slog.Logger
	stats    *observability.Stats
	interval time.Duration
}

var _ contract.Worker = (*HeartbeatWorker)(nil)

func NewHeartbeatWorker(log *slog.Logger, stats *observability.Stats, interval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, stats: stats, interval: interval}
}

// Run samples CPU and RAM every interval until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	w.log.Info("Starting relay heartbeat worker", "interval", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Beat(p)
		}
	}
}

// Beat records one process sample and logs the current counters.
func (w *HeartbeatWorker) Beat(p *process.Process) {
	rss, cpu, err := selfStats(p)
	if err != nil {
		w.log.Error("Failed to collect self stats", "error", err)
	} else {
		w.stats.SetProcess(rss, cpu)
	}

	snapshot := w.stats.Snapshot()
	w.log.Debug("Relay heartbeat",
		"active_participants", snapshot.ActiveParticipants,
		"messages", snapshot.Messages,
		"dropped_deliveries", snapshot.DroppedDeliveries,
		"ram_bytes", snapshot.RamBytes,
		"cpu_percent", snapshot.CpuPercent,
	)
}

func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
