// Package runtime hosts the relay: session registry, typing tracker, broadcaster
// and the dispatch loop composing them.
// It orchestrates the chat without containing wire or UI logic.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ConnectCommand attaches the output channel of a freshly accepted connection.
type ConnectCommand struct {
	Connection domain.ParticipantID
	Sink       contract.EventSink
}

func (c ConnectCommand) ConnectionID() domain.ParticipantID { return c.Connection }

type RelayConfig struct {
	BufferSize       int
	TypingTTL        time.Duration
	SinkTimeout      time.Duration
	MaxMessageLength int
	Censor           contract.Censor
}

// Relay is the single serialization point of the chat.
//
// Every inbound command is handled to completion, side effects and outbound
// fan-out included, before the next one is read. Registry, tracker and
// broadcaster are therefore never accessed concurrently.
type Relay struct {
	log         *slog.Logger
	supervisor  contract.ISupervisor
	stats       *observability.Stats
	clock       contract.Clock
	registry    *Registry
	tracker     *TypingTracker
	broadcaster *Broadcaster
	outbox      *Outbox
	commands    chan domain.Command
	workers     []contract.Worker
	closing     chan struct{}
	closeOnce   sync.Once
}

var _ contract.Worker = (*Relay)(nil)

func NewRelay(log *slog.Logger, supervisor contract.ISupervisor, stats *observability.Stats,
	clock contract.Clock, config RelayConfig) *Relay {
	outbox := NewOutbox()
	r := &Relay{
		log:        log,
		supervisor: supervisor,
		stats:      stats,
		clock:      clock,
		outbox:     outbox,
		commands:   make(chan domain.Command, config.BufferSize),
		closing:    make(chan struct{}),
	}
	r.registry = NewRegistry(clock, outbox)
	r.tracker = NewTypingTracker(r.registry, clock, outbox, config.TypingTTL, r.post)
	r.registry.OnUnregister(r.tracker.Purge)
	r.broadcaster = NewBroadcaster(log, r.registry, r.tracker, clock, outbox,
		config.MaxMessageLength, config.SinkTimeout).
		WithCensor(config.Censor).
		WithDropHandler(func(domain.ParticipantID, error) { stats.IncrDropped() })
	r.broadcaster.Add(stats)
	return r
}

// Add registers sinks receiving every outbound event.
func (r *Relay) Add(sinks ...contract.EventSink) {
	r.broadcaster.Add(sinks...)
}

// AddWorkers registers workers supervised next to the dispatch loop.
func (r *Relay) AddWorkers(workers ...contract.Worker) {
	r.workers = append(r.workers, workers...)
}

// Dispatch queues an inbound command. It blocks while the queue is full.
func (r *Relay) Dispatch(ctx context.Context, cmd domain.Command) error {
	select {
	case <-r.closing:
		return errors.ErrRelayClosed
	default:
	}
	select {
	case r.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.closing:
		return errors.ErrRelayClosed
	}
}

// post is the path of typing timers into the dispatch loop.
func (r *Relay) post(cmd domain.TypingExpiredCommand) {
	select {
	case r.commands <- cmd:
	case <-r.closing:
	}
}

// Run is the dispatch loop.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.log.Debug("Stopping relay dispatch loop")
			return ctx.Err()
		case cmd := <-r.commands:
			r.Handle(ctx, cmd)
		}
	}
}

// Handle processes one command and fans out everything it produced.
func (r *Relay) Handle(ctx context.Context, cmd domain.Command) {
	// leftovers of a command that panicked before its own flush
	r.flush(ctx)

	var err error
	switch c := cmd.(type) {
	case ConnectCommand:
		if !r.registry.Connect(c.Connection, c.Sink) {
			r.log.Warn("Connection id already in use", "connection_id", c.Connection)
		}
	case domain.JoinCommand:
		var participant domain.Participant
		participant, err = r.registry.Register(c.Connection, c.DisplayName)
		if err == nil {
			r.log.Info("Participant joined", "participant_id", participant.ID, "display_name", participant.DisplayName)
			r.introduce(ctx, participant.ID)
		}
	case domain.SendMessageCommand:
		_, err = r.broadcaster.Submit(c.Connection, c.Text)
	case domain.TypingPulseCommand:
		err = r.tracker.Pulse(c.Connection)
	case domain.DisconnectCommand:
		if r.registry.Disconnect(c.Connection) {
			r.log.Info("Connection closed", "connection_id", c.Connection)
		}
	case domain.TypingExpiredCommand:
		r.tracker.Expire(c.Participant, c.Generation)
	default:
		r.log.Warn(fmt.Sprintf("Unknown command %T", cmd))
	}

	if err != nil {
		r.report(ctx, cmd.ConnectionID(), err)
	}
	r.flush(ctx)
}

func (r *Relay) flush(ctx context.Context) {
	for _, evt := range r.outbox.FlushEvents() {
		r.broadcaster.Fanout(ctx, evt)
	}
}

// introduce sends a newcomer, and only it, the participants already online
// and those of them typing. Its own presence-changed(joined) is still in the
// outbox, so it comes after.
func (r *Relay) introduce(ctx context.Context, newcomer domain.ParticipantID) {
	sink, ok := r.registry.Sink(newcomer)
	if !ok {
		return
	}
	var introductions []event.DomainEvent
	for _, recipient := range r.registry.Snapshot() {
		participant := recipient.Participant
		if participant.ID == newcomer {
			continue
		}
		introductions = append(introductions, event.PresenceChanged{
			ParticipantID: participant.ID,
			DisplayName:   participant.DisplayName,
			Kind:          event.Joined,
			At:            participant.ConnectedAt,
		})
		if r.tracker.IsTyping(participant.ID) {
			introductions = append(introductions, event.TypingStateChanged{
				ParticipantID: participant.ID,
				DisplayName:   participant.DisplayName,
				Typing:        true,
				At:            r.clock.Now(),
			})
		}
	}
	for _, evt := range introductions {
		if err := r.broadcaster.consume(ctx, sink, evt); err != nil {
			r.stats.IncrDropped()
			r.log.Debug("Introduction not delivered", "connection_id", newcomer, "error", err)
			return
		}
	}
}

// report scopes an error to its originating connection.
// Stale and empty inputs are never surfaced.
func (r *Relay) report(ctx context.Context, id domain.ParticipantID, err error) {
	var code string
	switch {
	case stderrors.Is(err, errors.ErrStaleEvent):
		r.stats.IncrStale()
		r.log.Debug("Stale event dropped", "connection_id", id, "error", err)
		return
	case stderrors.Is(err, errors.ErrEmptyMessage):
		r.log.Debug("Empty message ignored", "connection_id", id)
		return
	case stderrors.Is(err, errors.ErrInvalidName):
		code = "INVALID_NAME"
	case stderrors.Is(err, errors.ErrAlreadyJoined):
		code = "ALREADY_JOINED"
	case stderrors.Is(err, errors.ErrMessageTooLong):
		code = "MESSAGE_TOO_LONG"
	default:
		r.log.Error("Command failed", "connection_id", id, "error", err)
		return
	}

	r.stats.IncrRejected()
	sink, ok := r.registry.Sink(id)
	if !ok {
		return
	}
	rejected := event.CommandRejected{Connection: id, Code: code, Reason: err.Error()}
	if err := r.broadcaster.consume(ctx, sink, rejected); err != nil {
		r.log.Debug("Rejection not delivered", "connection_id", id, "error", err)
	}
}

// Start registers the dispatch loop and the extra workers, then runs the supervisor.
// It blocks until the supervisor returns.
func (r *Relay) Start(ctx context.Context) {
	r.supervisor.Add(r)
	r.supervisor.Add(r.workers...)

	r.log.Info("Starting relay and all supervised workers")
	r.supervisor.Run(ctx)
}

// Stop cancels the supervised workers and releases pending timer posts.
func (r *Relay) Stop() {
	r.log.Info("Requesting relay shutdown")
	r.closeOnce.Do(func() { close(r.closing) })
	r.supervisor.Stop()
}
