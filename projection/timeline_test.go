package projection

import (
	"chat-relay/domain/event"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeline_Messages_OrderedAndDeduplicated(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()
	now := time.Now()

	events := []event.DomainEvent{
		event.MessageDelivered{Sequence: 1, SenderID: "A", SenderName: "Alice", Text: "Hello Bob", SentAt: now},
		event.MessageDelivered{Sequence: 2, SenderID: "C", SenderName: "Clara", Text: "Hi Bob", SentAt: now.Add(time.Second)},
		event.MessageDelivered{Sequence: 2, SenderID: "C", SenderName: "Clara", Text: "Hi Bob", SentAt: now.Add(time.Second)},
	}
	for _, e := range events {
		req.NoError(timeline.Consume(ctx, e))
	}

	messages := timeline.Messages()
	req.Len(messages, 2)
	req.Equal("Alice", messages[0].SenderName)
	req.Equal("Clara", messages[1].SenderName)
}

func TestTimeline_RosterAndTyping(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline()
	ctx := context.Background()
	timeline.SetSelf("B")

	// Given three participants, two of them typing
	for _, e := range []event.DomainEvent{
		event.PresenceChanged{ParticipantID: "A", DisplayName: "Alice", Kind: event.Joined},
		event.PresenceChanged{ParticipantID: "B", DisplayName: "Bob", Kind: event.Joined},
		event.PresenceChanged{ParticipantID: "C", DisplayName: "Clara", Kind: event.Joined},
		event.TypingStateChanged{ParticipantID: "C", DisplayName: "Clara", Typing: true},
		event.TypingStateChanged{ParticipantID: "A", DisplayName: "Alice", Typing: true},
		event.TypingStateChanged{ParticipantID: "B", DisplayName: "Bob", Typing: true},
	} {
		req.NoError(timeline.Consume(ctx, e))
	}
	req.Equal([]string{"Alice", "Clara"}, timeline.Typing())

	// When Alice sends and Clara leaves
	req.NoError(timeline.Consume(ctx, event.MessageDelivered{Sequence: 1, SenderID: "A", SenderName: "Alice", Text: "hi"}))
	req.NoError(timeline.Consume(ctx, event.PresenceChanged{ParticipantID: "C", DisplayName: "Clara", Kind: event.Left}))

	// Then nobody else is typing and the roster keeps join order
	req.Empty(timeline.Typing())
	roster := timeline.Roster()
	req.Len(roster, 2)
	req.Equal("Alice", roster[0].DisplayName)
	req.Equal("Bob", roster[1].DisplayName)
}
