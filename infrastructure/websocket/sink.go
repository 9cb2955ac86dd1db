package websocket

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"sync"
)

// ConnectionSink is the output channel of one connection.
// The relay writes into a bounded buffer drained by the write pump.
// A full buffer marks the connection as a slow consumer, to be closed.
type ConnectionSink struct {
	events   chan event.DomainEvent
	overflow chan struct{}
	once     sync.Once
}

var _ contract.EventSink = (*ConnectionSink)(nil)

func NewConnectionSink(bufferSize int) *ConnectionSink {
	return &ConnectionSink{
		events:   make(chan event.DomainEvent, bufferSize),
		overflow: make(chan struct{}),
	}
}

// Consume waits for room in a full buffer until ctx is done, then flags the
// connection. Without a deadline on ctx a full buffer overflows at once.
func (s *ConnectionSink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.overflow:
		return errors.ErrSlowConsumer
	default:
	}
	select {
	case s.events <- e:
		return nil
	default:
	}
	if ctx.Done() == nil {
		s.markOverflow()
		return errors.ErrSlowConsumer
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		s.markOverflow()
		return fmt.Errorf("%w: %w", errors.ErrSlowConsumer, ctx.Err())
	}
}

func (s *ConnectionSink) markOverflow() {
	s.once.Do(func() { close(s.overflow) })
}

func (s *ConnectionSink) Events() <-chan event.DomainEvent {
	return s.events
}

// Overflow is closed the first time an event could not be buffered.
func (s *ConnectionSink) Overflow() <-chan struct{} {
	return s.overflow
}
