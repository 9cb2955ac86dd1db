package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DropHandler is told about every delivery that failed for one recipient.
type DropHandler func(id domain.ParticipantID, err error)

// Broadcaster accepts chat messages and fans outbound events out to every
// active participant.
//
// Delivery is at-most-once: a recipient whose sink fails misses that event,
// nothing is retried or buffered. The sender is a recipient like any other and
// sees its own message only through the fan-out.
type Broadcaster struct {
	log            *slog.Logger
	registry       contract.IRegistry
	tracker        *TypingTracker
	clock          contract.Clock
	outbox         *Outbox
	censor         contract.Censor
	maxLength      int
	sinkTimeout    time.Duration
	sequence       uint64
	permanentSinks []contract.EventSink
	onDrop         DropHandler
}

func NewBroadcaster(log *slog.Logger, registry contract.IRegistry, tracker *TypingTracker,
	clock contract.Clock, outbox *Outbox, maxLength int, sinkTimeout time.Duration) *Broadcaster {
	return &Broadcaster{
		log:         log,
		registry:    registry,
		tracker:     tracker,
		clock:       clock,
		outbox:      outbox,
		maxLength:   maxLength,
		sinkTimeout: sinkTimeout,
	}
}

// WithCensor masks forbidden words of every accepted message.
func (b *Broadcaster) WithCensor(censor contract.Censor) *Broadcaster {
	b.censor = censor
	return b
}

func (b *Broadcaster) WithDropHandler(onDrop DropHandler) *Broadcaster {
	b.onDrop = onDrop
	return b
}

// Add registers sinks receiving every outbound event, after the participants.
func (b *Broadcaster) Add(sinks ...contract.EventSink) {
	b.permanentSinks = append(b.permanentSinks, sinks...)
}

// Submit validates and stamps a message, stops the sender's typing state and
// queues message-delivered. Rejected messages produce no event.
func (b *Broadcaster) Submit(id domain.ParticipantID, rawText string) (domain.Message, error) {
	sender, ok := b.registry.Participant(id)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: message from %s", errors.ErrStaleEvent, id)
	}
	text, err := domain.NormalizeText(rawText, b.maxLength)
	if err != nil {
		return domain.Message{}, err
	}
	if b.censor != nil {
		text = b.censor.Censor(text)
	}

	b.sequence++
	message := domain.Message{
		ID:         uuid.New(),
		Sequence:   b.sequence,
		SenderID:   sender.ID,
		SenderName: sender.DisplayName,
		Text:       text,
		SentAt:     b.clock.Now(),
	}

	// typing-state-changed(false) must reach everyone before the message itself
	b.tracker.Stop(id)
	b.outbox.Append(event.FromMessage(message))
	return message, nil
}

// Fanout delivers one event to a snapshot of the active participants, then to
// the permanent sinks. It returns the number of participants reached.
func (b *Broadcaster) Fanout(ctx context.Context, evt event.DomainEvent) int {
	delivered := 0
	for _, recipient := range b.registry.Snapshot() {
		if err := b.consume(ctx, recipient.Sink, evt); err != nil {
			b.log.Warn("Delivery dropped",
				"participant_id", recipient.Participant.ID,
				"event", evt.EventType(),
				"error", err)
			if b.onDrop != nil {
				b.onDrop(recipient.Participant.ID, err)
			}
			continue
		}
		delivered++
	}
	for _, sink := range b.permanentSinks {
		if err := b.consume(ctx, sink, evt); err != nil {
			b.log.Debug("Permanent sink failed", "event", evt.EventType(), "error", err)
		}
	}
	return delivered
}

// consume bounds one delivery by the sink timeout. A panicking sink counts as
// a failed delivery so the rest of the fan-out still goes out.
func (b *Broadcaster) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) (err error) {
	if sink == nil {
		return nil
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %v", errors.ErrSinkPanic, rec)
		}
	}()
	if b.sinkTimeout <= 0 {
		return sink.Consume(ctx, evt)
	}
	sinkCtx, cancel := context.WithTimeout(ctx, b.sinkTimeout)
	defer cancel()
	return sink.Consume(sinkCtx, evt)
}
