package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"fmt"
	"slices"
	"time"

	"github.com/samber/lo"
)

type connection struct {
	sink        contract.EventSink
	connectedAt time.Time
	participant *domain.Participant
}

// Registry is the session registry: the table of connection output channels
// and the participants that joined through them.
//
// It holds no lock. Only the relay dispatch goroutine may call it.
type Registry struct {
	clock       contract.Clock
	outbox      *Outbox
	connections map[domain.ParticipantID]*connection
	active      []domain.ParticipantID // join order
	leaveHooks  []func(domain.ParticipantID)
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(clock contract.Clock, outbox *Outbox) *Registry {
	return &Registry{
		clock:       clock,
		outbox:      outbox,
		connections: make(map[domain.ParticipantID]*connection),
	}
}

// OnUnregister adds a hook run when a participant leaves, before it is removed.
func (r *Registry) OnUnregister(hook func(domain.ParticipantID)) {
	r.leaveHooks = append(r.leaveHooks, hook)
}

// Connect attaches the output channel of a new connection.
// It returns false when the connection id is already in use.
func (r *Registry) Connect(id domain.ParticipantID, sink contract.EventSink) bool {
	if _, ok := r.connections[id]; ok {
		return false
	}
	r.connections[id] = &connection{sink: sink, connectedAt: r.clock.Now()}
	return true
}

// Register turns a connection into a participant and emits presence-changed(joined).
// Display names are not deduplicated.
func (r *Registry) Register(id domain.ParticipantID, displayName string) (domain.Participant, error) {
	conn, ok := r.connections[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: %s", errors.ErrStaleEvent, id)
	}
	if conn.participant != nil {
		return domain.Participant{}, fmt.Errorf("%w: %s", errors.ErrAlreadyJoined, id)
	}
	participant, err := domain.NewParticipant(id, displayName, conn.connectedAt)
	if err != nil {
		return domain.Participant{}, err
	}
	conn.participant = &participant
	r.active = append(r.active, id)

	r.outbox.Append(event.PresenceChanged{
		ParticipantID: id,
		DisplayName:   participant.DisplayName,
		Kind:          event.Joined,
		At:            r.clock.Now(),
	})
	return participant, nil
}

// Unregister removes a participant. Unknown or already removed ids are a no-op,
// so duplicate disconnect notifications emit presence-changed(left) only once.
func (r *Registry) Unregister(id domain.ParticipantID) bool {
	conn, ok := r.connections[id]
	if !ok || conn.participant == nil {
		return false
	}
	for _, hook := range r.leaveHooks {
		hook(id)
	}
	participant := *conn.participant
	conn.participant = nil
	r.active = slices.DeleteFunc(r.active, func(p domain.ParticipantID) bool { return p == id })

	r.outbox.Append(event.PresenceChanged{
		ParticipantID: id,
		DisplayName:   participant.DisplayName,
		Kind:          event.Left,
		At:            r.clock.Now(),
	})
	return true
}

// Disconnect unregisters the participant and forgets its output channel.
func (r *Registry) Disconnect(id domain.ParticipantID) bool {
	if _, ok := r.connections[id]; !ok {
		return false
	}
	r.Unregister(id)
	delete(r.connections, id)
	return true
}

func (r *Registry) IsActive(id domain.ParticipantID) bool {
	conn, ok := r.connections[id]
	return ok && conn.participant != nil
}

func (r *Registry) Participant(id domain.ParticipantID) (domain.Participant, bool) {
	conn, ok := r.connections[id]
	if !ok || conn.participant == nil {
		return domain.Participant{}, false
	}
	return *conn.participant, true
}

// Sink returns the output channel of a connection, joined or not.
func (r *Registry) Sink(id domain.ParticipantID) (contract.EventSink, bool) {
	conn, ok := r.connections[id]
	if !ok {
		return nil, false
	}
	return conn.sink, true
}

// Snapshot lists the active participants in join order.
func (r *Registry) Snapshot() []contract.Recipient {
	return lo.Map(r.active, func(id domain.ParticipantID, _ int) contract.Recipient {
		conn := r.connections[id]
		return contract.Recipient{Participant: *conn.participant, Sink: conn.sink}
	})
}

func (r *Registry) Count() int {
	return len(r.active)
}
