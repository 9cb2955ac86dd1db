package runtime

import "chat-relay/domain/event"

type EventSource interface {
	FlushEvents() []event.DomainEvent
}

// Outbox collects the events produced while one command is handled.
// Registry, tracker and broadcaster share a single outbox so the relay
// fans events out in the exact order they were produced.
type Outbox struct {
	events []event.DomainEvent
}

var _ EventSource = (*Outbox)(nil)

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) Append(events ...event.DomainEvent) {
	o.events = append(o.events, events...)
}

// FlushEvents returns the pending events and empties the outbox.
func (o *Outbox) FlushEvents() []event.DomainEvent {
	events := o.events
	o.events = nil
	return events
}
