package runtime

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type broadcastFixture struct {
	*typingFixture
	broadcaster *Broadcaster
	alice       *recordingSink
	bob         *recordingSink
}

func newBroadcastFixture(t *testing.T) *broadcastFixture {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	f := &broadcastFixture{typingFixture: newTypingFixture(t), alice: &recordingSink{}, bob: &recordingSink{}}
	f.broadcaster = NewBroadcaster(log, f.registry, f.tracker, f.clock, f.outbox, 20, time.Second)

	// alice was joined by the typing fixture with a throwaway sink
	f.registry.Disconnect("alice")
	f.registry.Connect("alice", f.alice)
	f.registry.Connect("bob", f.bob)
	_, err := f.registry.Register("alice", "Alice")
	require.NoError(t, err)
	_, err = f.registry.Register("bob", "Bob")
	require.NoError(t, err)
	f.outbox.FlushEvents()
	return f
}

func (f *broadcastFixture) flush(ctx context.Context) {
	for _, evt := range f.outbox.FlushEvents() {
		f.broadcaster.Fanout(ctx, evt)
	}
}

func TestBroadcaster_Submit_StampsMessage(t *testing.T) {
	req := require.New(t)
	f := newBroadcastFixture(t)

	message, err := f.broadcaster.Submit("alice", "  hello  ")

	req.NoError(err)
	req.Equal("hello", message.Text)
	req.Equal("Alice", message.SenderName)
	req.Equal(domain.ParticipantID("alice"), message.SenderID)
	req.Equal(f.clock.Now(), message.SentAt)
	req.Equal(uint64(1), message.Sequence)

	events := f.outbox.FlushEvents()
	req.Equal([]event.DomainEvent{event.FromMessage(message)}, events)
}

func TestBroadcaster_Submit_Rejections(t *testing.T) {
	tests := []struct {
		name string
		from domain.ParticipantID
		text string
		err  error
	}{
		{name: "whitespace only", from: "alice", text: "   ", err: errors.ErrEmptyMessage},
		{name: "empty", from: "alice", text: "", err: errors.ErrEmptyMessage},
		{name: "too long", from: "alice", text: strings.Repeat("a", 21), err: errors.ErrMessageTooLong},
		{name: "unknown sender", from: "ghost", text: "hi", err: errors.ErrStaleEvent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newBroadcastFixture(t)

			_, err := f.broadcaster.Submit(tt.from, tt.text)

			req.ErrorIs(err, tt.err)
			req.Empty(f.outbox.FlushEvents())
		})
	}
}

func TestBroadcaster_Submit_LengthCountsRunes(t *testing.T) {
	req := require.New(t)
	f := newBroadcastFixture(t)

	_, err := f.broadcaster.Submit("alice", strings.Repeat("é", 20))

	req.NoError(err)
}

func TestBroadcaster_Submit_ClearsTypingFirst(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newBroadcastFixture(t)

	// Given alice is typing
	req.NoError(f.tracker.Pulse("alice"))
	f.flush(ctx)
	f.bob.Reset()

	// When alice sends a message
	_, err := f.broadcaster.Submit("alice", "hi")
	req.NoError(err)
	f.flush(ctx)

	// Then bob sees typing=false before the message
	events := f.bob.Events()
	req.Len(events, 2)
	typing, ok := events[0].(event.TypingStateChanged)
	req.True(ok)
	req.False(typing.Typing)
	delivered, ok := events[1].(event.MessageDelivered)
	req.True(ok)
	req.Equal("hi", delivered.Text)

	// And the stale timer never fires afterwards
	f.clock.Advance(2 * DefaultTypingTTL)
	req.Empty(f.expired)
}

func TestBroadcaster_Fanout_IncludesSenderInOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newBroadcastFixture(t)

	texts := []string{"one", "two", "three"}
	senders := []domain.ParticipantID{"alice", "bob", "alice"}
	for i, text := range texts {
		_, err := f.broadcaster.Submit(senders[i], text)
		req.NoError(err)
	}
	f.flush(ctx)

	for _, sink := range []*recordingSink{f.alice, f.bob} {
		events := sink.Events()
		req.Len(events, len(texts))
		for i, e := range events {
			delivered, ok := e.(event.MessageDelivered)
			req.True(ok)
			req.Equal(texts[i], delivered.Text)
			req.Equal(uint64(i+1), delivered.Sequence)
		}
	}
}

func TestBroadcaster_Fanout_DropsFailingRecipient(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newBroadcastFixture(t)
	ctrl := gomock.NewController(t)

	// Given a third participant whose sink fails
	failing := mocks.NewMockEventSink(ctrl)
	failing.EXPECT().Consume(gomock.Any(), gomock.Any()).Return(errors.ErrSlowConsumer).Times(1)
	f.registry.Connect("carol", failing)
	_, err := f.registry.Register("carol", "Carol")
	req.NoError(err)
	f.outbox.FlushEvents()
	f.alice.Reset()
	f.bob.Reset()

	// And a permanent sink
	permanent := mocks.NewMockEventSink(ctrl)
	permanent.EXPECT().Consume(gomock.Any(), gomock.AssignableToTypeOf(event.MessageDelivered{})).Return(nil).Times(1)
	f.broadcaster.Add(permanent)

	var dropped []domain.ParticipantID
	f.broadcaster.WithDropHandler(func(id domain.ParticipantID, err error) {
		dropped = append(dropped, id)
	})

	// When a message is fanned out
	_, err = f.broadcaster.Submit("bob", "hey")
	req.NoError(err)
	events := f.outbox.FlushEvents()
	req.Len(events, 1)
	delivered := f.broadcaster.Fanout(ctx, events[0])

	// Then the others still receive it
	req.Equal(2, delivered)
	req.Len(f.alice.Events(), 1)
	req.Len(f.bob.Events(), 1)
	req.Equal([]domain.ParticipantID{"carol"}, dropped)
}

func TestBroadcaster_Submit_Censored(t *testing.T) {
	req := require.New(t)
	f := newBroadcastFixture(t)
	ctrl := gomock.NewController(t)

	censor := mocks.NewMockCensor(ctrl)
	censor.EXPECT().Censor("you badger").Return("you ******").Times(1)
	f.broadcaster.WithCensor(censor)

	message, err := f.broadcaster.Submit("alice", " you badger ")

	req.NoError(err)
	req.Equal("you ******", message.Text)
}

func TestBroadcaster_Fanout_SinkGetsBoundedContext(t *testing.T) {
	req := require.New(t)
	f := newBroadcastFixture(t)
	ctrl := gomock.NewController(t)

	sink := mocks.NewMockEventSink(ctrl)
	sink.EXPECT().Consume(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ event.DomainEvent) error {
			_, ok := ctx.Deadline()
			req.True(ok)
			return nil
		}).Times(1)
	f.broadcaster.Add(sink)

	f.broadcaster.Fanout(context.Background(), event.PresenceChanged{ParticipantID: "bob", Kind: event.Joined})
}
