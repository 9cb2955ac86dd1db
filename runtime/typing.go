package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"time"
)

// DefaultTypingTTL is the debounce window of a typing pulse.
const DefaultTypingTTL = 2000 * time.Millisecond

type typingState struct {
	entry domain.TypingEntry
	timer contract.Timer
}

// TypingTracker keeps one debounced typing entry per participant.
//
// Expiry timers never touch the tracker: they hand a TypingExpiredCommand
// to onExpire, and the relay calls Expire from its dispatch goroutine.
// Expire only clears an entry whose generation matches the timer's, so a
// timer scheduled before a refresh can never clear the refreshed entry.
type TypingTracker struct {
	ttl        time.Duration
	clock      contract.Clock
	registry   contract.IRegistry
	outbox     *Outbox
	onExpire   func(domain.TypingExpiredCommand)
	entries    map[domain.ParticipantID]*typingState
	generation uint64
}

func NewTypingTracker(registry contract.IRegistry, clock contract.Clock, outbox *Outbox,
	ttl time.Duration, onExpire func(domain.TypingExpiredCommand)) *TypingTracker {
	if ttl <= 0 {
		ttl = DefaultTypingTTL
	}
	return &TypingTracker{
		ttl:      ttl,
		clock:    clock,
		registry: registry,
		outbox:   outbox,
		onExpire: onExpire,
		entries:  make(map[domain.ParticipantID]*typingState),
	}
}

// Pulse moves the participant to Typing, or refreshes its expiry when already typing.
// typing-state-changed(true) is emitted only on the Idle to Typing transition.
func (t *TypingTracker) Pulse(id domain.ParticipantID) error {
	if !t.registry.IsActive(id) {
		return fmt.Errorf("%w: typing pulse from %s", errors.ErrStaleEvent, id)
	}

	t.generation++
	generation := t.generation
	state, typing := t.entries[id]
	if typing {
		state.timer.Stop()
	} else {
		state = &typingState{}
		t.entries[id] = state
	}

	state.entry = domain.TypingEntry{
		ParticipantID: id,
		ExpiresAt:     t.clock.Now().Add(t.ttl),
		Generation:    generation,
	}
	state.timer = t.clock.AfterFunc(t.ttl, func() {
		t.onExpire(domain.TypingExpiredCommand{Participant: id, Generation: generation})
	})

	if !typing {
		t.emit(id, true)
	}
	return nil
}

// Stop moves the participant back to Idle and cancels its pending expiry.
// It is used when the participant sends a message.
func (t *TypingTracker) Stop(id domain.ParticipantID) bool {
	state, ok := t.entries[id]
	if !ok {
		return false
	}
	state.timer.Stop()
	delete(t.entries, id)
	t.emit(id, false)
	return true
}

// Purge clears the entry of a leaving participant. Registered as a registry leave hook.
func (t *TypingTracker) Purge(id domain.ParticipantID) {
	t.Stop(id)
}

// Expire handles a fired timer. Timers of an older generation are ignored.
func (t *TypingTracker) Expire(id domain.ParticipantID, generation uint64) bool {
	state, ok := t.entries[id]
	if !ok || state.entry.Generation != generation {
		return false
	}
	delete(t.entries, id)
	t.emit(id, false)
	return true
}

func (t *TypingTracker) IsTyping(id domain.ParticipantID) bool {
	_, ok := t.entries[id]
	return ok
}

func (t *TypingTracker) Entry(id domain.ParticipantID) (domain.TypingEntry, bool) {
	state, ok := t.entries[id]
	if !ok {
		return domain.TypingEntry{}, false
	}
	return state.entry, true
}

// emit is skipped for participants the registry no longer knows.
func (t *TypingTracker) emit(id domain.ParticipantID, typing bool) {
	participant, ok := t.registry.Participant(id)
	if !ok {
		return
	}
	t.outbox.Append(event.TypingStateChanged{
		ParticipantID: id,
		DisplayName:   participant.DisplayName,
		Typing:        typing,
		At:            t.clock.Now(),
	})
}
