package observability

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot aggregates the relay counters for the debug endpoint and the heartbeat.
type Snapshot struct {
	ActiveParticipants int64   `json:"active_participants"`
	Joins              uint64  `json:"joins"`
	Leaves             uint64  `json:"leaves"`
	Messages           uint64  `json:"messages"`
	TypingStarted      uint64  `json:"typing_started"`
	TypingStopped      uint64  `json:"typing_stopped"`
	Rejected           uint64  `json:"rejected"`
	StaleEvents        uint64  `json:"stale_events"`
	DroppedDeliveries  uint64  `json:"dropped_deliveries"`
	RamBytes           uint64  `json:"ram_bytes"`
	CpuPercent         float64 `json:"cpu_percent"`
	Uptime             string  `json:"uptime"`
}

// Stats counts what flows through the relay.
// It is registered as a permanent sink, so it sees every fanned-out event once.
type Stats struct {
	startedAt time.Time

	active        int64
	joins         uint64
	leaves        uint64
	messages      uint64
	typingStarted uint64
	typingStopped uint64
	rejected      uint64
	stale         uint64
	dropped       uint64

	mu         sync.RWMutex
	ramBytes   uint64
	cpuPercent float64
}

var _ contract.EventSink = (*Stats)(nil)

func NewStats() *Stats {
	return &Stats{startedAt: time.Now()}
}

func (s *Stats) Consume(_ context.Context, e event.DomainEvent) error {
	switch evt := e.(type) {
	case event.MessageDelivered:
		atomic.AddUint64(&s.messages, 1)
	case event.PresenceChanged:
		if evt.Kind == event.Joined {
			atomic.AddUint64(&s.joins, 1)
			atomic.AddInt64(&s.active, 1)
		} else {
			atomic.AddUint64(&s.leaves, 1)
			atomic.AddInt64(&s.active, -1)
		}
	case event.TypingStateChanged:
		if evt.Typing {
			atomic.AddUint64(&s.typingStarted, 1)
		} else {
			atomic.AddUint64(&s.typingStopped, 1)
		}
	}
	return nil
}

func (s *Stats) IncrRejected() {
	atomic.AddUint64(&s.rejected, 1)
}

func (s *Stats) IncrStale() {
	atomic.AddUint64(&s.stale, 1)
}

func (s *Stats) IncrDropped() {
	atomic.AddUint64(&s.dropped, 1)
}

// SetProcess records the latest process sample taken by the heartbeat.
func (s *Stats) SetProcess(ramBytes uint64, cpuPercent float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ramBytes = ramBytes
	s.cpuPercent = cpuPercent
}

func (s *Stats) Snapshot() Snapshot {
	s.mu.RLock()
	ram, cpu := s.ramBytes, s.cpuPercent
	s.mu.RUnlock()

	return Snapshot{
		ActiveParticipants: atomic.LoadInt64(&s.active),
		Joins:              atomic.LoadUint64(&s.joins),
		Leaves:             atomic.LoadUint64(&s.leaves),
		Messages:           atomic.LoadUint64(&s.messages),
		TypingStarted:      atomic.LoadUint64(&s.typingStarted),
		TypingStopped:      atomic.LoadUint64(&s.typingStopped),
		Rejected:           atomic.LoadUint64(&s.rejected),
		StaleEvents:        atomic.LoadUint64(&s.stale),
		DroppedDeliveries:  atomic.LoadUint64(&s.dropped),
		RamBytes:           ram,
		CpuPercent:         cpu,
		Uptime:             time.Since(s.startedAt).Truncate(time.Second).String(),
	}
}
