package workers

import (
	"chat-relay/observability"
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/shirou/gopsutil/process"
	"github.com/stretchr/testify/require"
)

func TestHeartbeatWorker_Beat_RecordsProcessSample(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	stats := observability.NewStats()
	worker := NewHeartbeatWorker(log, stats, time.Second)

	p, err := process.NewProcess(int32(os.Getpid()))
	req.NoError(err)

	// When one beat happens
	worker.Beat(p)

	// Then the process memory is known
	req.NotZero(stats.Snapshot().RamBytes)
}

func TestHeartbeatWorker_Run_StopsWithContext(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	worker := NewHeartbeatWorker(log, observability.NewStats(), 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := worker.Run(ctx)
	req.ErrorIs(err, context.DeadlineExceeded)
}
