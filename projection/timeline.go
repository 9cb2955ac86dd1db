// Package projection builds the local view of a client from the events it observes.
// It handles ordering and deduplication of messages, the roster and typing set.
// It does not emit events or interact with the UI directly.
package projection

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"slices"
	"sync"

	"github.com/samber/lo"
)

// Timeline is the client-side projection of the relay stream.
// It is fed by the socket reader and read by the UI, hence the lock.
type Timeline struct {
	mu       sync.RWMutex
	self     domain.ParticipantID
	messages []domain.Message
	lastSeq  uint64
	online   []domain.Participant
	typing   map[domain.ParticipantID]string
}

var _ contract.EventSink = (*Timeline)(nil)

func NewTimeline() *Timeline {
	return &Timeline{typing: make(map[domain.ParticipantID]string)}
}

// SetSelf records the connection id announced by the relay.
func (t *Timeline) SetSelf(id domain.ParticipantID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.self = id
}

func (t *Timeline) Self() domain.ParticipantID {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.self
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch evt := e.(type) {
	case event.MessageDelivered:
		// sequences only grow, anything else was already seen
		if evt.Sequence <= t.lastSeq {
			return nil
		}
		t.lastSeq = evt.Sequence
		t.messages = append(t.messages, fromEvent(evt))
		delete(t.typing, evt.SenderID)
	case event.TypingStateChanged:
		if evt.Typing {
			t.typing[evt.ParticipantID] = evt.DisplayName
		} else {
			delete(t.typing, evt.ParticipantID)
		}
	case event.PresenceChanged:
		t.online = slices.DeleteFunc(t.online, func(p domain.Participant) bool {
			return p.ID == evt.ParticipantID
		})
		if evt.Kind == event.Joined {
			t.online = append(t.online, domain.Participant{
				ID:          evt.ParticipantID,
				DisplayName: evt.DisplayName,
				ConnectedAt: evt.At,
			})
		} else {
			delete(t.typing, evt.ParticipantID)
		}
	}
	return nil
}

func (t *Timeline) Messages() []domain.Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.messages)
}

// Roster returns the participants seen online, in join order.
func (t *Timeline) Roster() []domain.Participant {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.online)
}

// Typing returns the sorted display names of the other participants typing.
func (t *Timeline) Typing() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	others := lo.OmitByKeys(t.typing, []domain.ParticipantID{t.self})
	names := lo.Values(others)
	slices.Sort(names)
	return names
}

func fromEvent(evt event.MessageDelivered) domain.Message {
	return domain.Message{
		ID:         evt.ID,
		Sequence:   evt.Sequence,
		SenderID:   evt.SenderID,
		SenderName: evt.SenderName,
		Text:       evt.Text,
		SentAt:     evt.SentAt,
	}
}
