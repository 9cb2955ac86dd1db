package websocket

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *Server) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	relay := runtime.NewRelay(log, workers.NewSupervisor(log, 10*time.Millisecond), observability.NewStats(),
		runtime.SystemClock{}, runtime.RelayConfig{
			BufferSize:       64,
			TypingTTL:        time.Second,
			SinkTimeout:      time.Second,
			MaxMessageLength: 2000,
		})
	ctx, cancel := context.WithCancel(context.Background())
	go relay.Start(ctx)
	t.Cleanup(func() {
		relay.Stop()
		cancel()
	})

	server := NewServer(log, relay, 64)
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)
	return srv, server
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, cmd domain.Command) {
	frame, err := EncodeCommand(cmd)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(frame))
}

func next(t *testing.T, conn *websocket.Conn) event.DomainEvent {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	e, err := DecodeEvent(data)
	require.NoError(t, err)
	return e
}

// join reads the welcome frame, joins and waits for its own presence event,
// skipping the introductions of participants already online.
func join(t *testing.T, conn *websocket.Conn, name string) domain.ParticipantID {
	welcome, ok := next(t, conn).(Welcome)
	require.True(t, ok)
	send(t, conn, domain.JoinCommand{DisplayName: name})
	for {
		presence, ok := next(t, conn).(event.PresenceChanged)
		require.True(t, ok)
		require.Equal(t, event.Joined, presence.Kind)
		if presence.ParticipantID == welcome.ParticipantID {
			return welcome.ParticipantID
		}
	}
}

func TestServer_TypingThenMessage(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)

	// Given Alice then Bob joined
	alice := dial(t, srv)
	aliceID := join(t, alice, "Alice")
	bob := dial(t, srv)
	join(t, bob, "Bob")
	_, ok := next(t, alice).(event.PresenceChanged)
	req.True(ok)

	// When Alice types then sends
	send(t, alice, domain.TypingPulseCommand{})
	send(t, alice, domain.SendMessageCommand{Text: "  hi "})

	// Then Bob sees typing on, typing off, then the message
	typingOn, ok := next(t, bob).(event.TypingStateChanged)
	req.True(ok)
	req.True(typingOn.Typing)
	req.Equal(aliceID, typingOn.ParticipantID)
	typingOff, ok := next(t, bob).(event.TypingStateChanged)
	req.True(ok)
	req.False(typingOff.Typing)
	delivered, ok := next(t, bob).(event.MessageDelivered)
	req.True(ok)
	req.Equal("hi", delivered.Text)
	req.Equal("Alice", delivered.SenderName)
	req.Equal(uint64(1), delivered.Sequence)

	// And Alice receives her own message through the fan-out
	next(t, alice)
	next(t, alice)
	echo, ok := next(t, alice).(event.MessageDelivered)
	req.True(ok)
	req.Equal(delivered.ID, echo.ID)
}

func TestServer_CloseEmitsLeft(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	alice := dial(t, srv)
	aliceID := join(t, alice, "Alice")
	bob := dial(t, srv)
	join(t, bob, "Bob")

	// When Alice closes her socket
	req.NoError(alice.Close())

	// Then Bob sees her leave
	presence, ok := next(t, bob).(event.PresenceChanged)
	req.True(ok)
	req.Equal(aliceID, presence.ParticipantID)
	req.Equal(event.Left, presence.Kind)
}

func TestServer_InvalidName_RejectedToOrigin(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	_, ok := next(t, conn).(Welcome)
	req.True(ok)

	send(t, conn, domain.JoinCommand{DisplayName: "   "})

	rejected, ok := next(t, conn).(event.CommandRejected)
	req.True(ok)
	req.Equal("INVALID_NAME", rejected.Code)
}

func TestServer_InvalidFrames_CloseAfterThree(t *testing.T) {
	req := require.New(t)
	srv, _ := newTestServer(t)
	conn := dial(t, srv)
	_, ok := next(t, conn).(Welcome)
	req.True(ok)

	for i := 0; i < maxDecodeFailures; i++ {
		req.NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
		rejected, ok := next(t, conn).(event.CommandRejected)
		req.True(ok)
		req.Equal(CodeInvalidArgument, rejected.Code)
	}

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestServer_CloseAll(t *testing.T) {
	req := require.New(t)
	srv, server := newTestServer(t)
	conn := dial(t, srv)
	join(t, conn, "Alice")

	server.CloseAll()

	req.NoError(conn.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := conn.ReadMessage()
	req.Error(err)
}

func TestConnectionSink_SlowConsumer(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	sink := NewConnectionSink(1)

	// Given a buffer already full
	req.NoError(sink.Consume(ctx, event.TypingStateChanged{ParticipantID: "A", Typing: true}))

	// When another event arrives
	err := sink.Consume(ctx, event.TypingStateChanged{ParticipantID: "A"})

	// Then the connection is flagged and keeps refusing
	req.ErrorIs(err, errors.ErrSlowConsumer)
	select {
	case <-sink.Overflow():
	default:
		req.Fail("overflow not signalled")
	}
	<-sink.Events()
	req.ErrorIs(sink.Consume(ctx, event.TypingStateChanged{ParticipantID: "A"}), errors.ErrSlowConsumer)
}

func TestConnectionSink_WaitsForRoomUntilDeadline(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1)
	req.NoError(sink.Consume(context.Background(), event.TypingStateChanged{ParticipantID: "A", Typing: true}))

	// Given a writer draining the buffer shortly
	go func() {
		time.Sleep(20 * time.Millisecond)
		<-sink.Events()
	}()

	// When the next event arrives with a deadline
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := sink.Consume(ctx, event.TypingStateChanged{ParticipantID: "A"})

	// Then it waited for room instead of overflowing
	req.NoError(err)
	select {
	case <-sink.Overflow():
		req.Fail("overflow signalled")
	default:
	}
	req.False((<-sink.Events()).(event.TypingStateChanged).Typing)
}

func TestConnectionSink_DeadlineExceeded(t *testing.T) {
	req := require.New(t)
	sink := NewConnectionSink(1)
	req.NoError(sink.Consume(context.Background(), event.TypingStateChanged{ParticipantID: "A", Typing: true}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := sink.Consume(ctx, event.TypingStateChanged{ParticipantID: "A"})

	req.ErrorIs(err, errors.ErrSlowConsumer)
	req.ErrorIs(err, context.DeadlineExceeded)
	select {
	case <-sink.Overflow():
	default:
		req.Fail("overflow not signalled")
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		expected domain.Command
		err      error
	}{
		{
			name:     "join",
			data:     `{"type":"join","payload":{"displayName":"Alice"}}`,
			expected: domain.JoinCommand{Connection: "c1", DisplayName: "Alice"},
		},
		{
			name:     "send message",
			data:     `{"type":"send-message","payload":{"text":"hi"}}`,
			expected: domain.SendMessageCommand{Connection: "c1", Text: "hi"},
		},
		{
			name:     "typing pulse without payload",
			data:     `{"type":"typing-pulse"}`,
			expected: domain.TypingPulseCommand{Connection: "c1"},
		},
		{name: "not json", data: `hello`, err: errors.ErrInvalidFrame},
		{name: "join without payload", data: `{"type":"join"}`, err: errors.ErrInvalidFrame},
		{name: "unknown type", data: `{"type":"disconnect"}`, err: errors.ErrUnknownFrameType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand("c1", []byte(tt.data))
			if tt.err != nil {
				require.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.expected, cmd)
		})
	}
}

func TestEncodeEvent_WireNames(t *testing.T) {
	req := require.New(t)
	sentAt := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	frame, err := EncodeEvent(event.MessageDelivered{
		Sequence:   7,
		SenderID:   "A",
		SenderName: "Alice",
		Text:       "hi",
		SentAt:     sentAt,
	})
	req.NoError(err)
	req.Equal("message-delivered", frame.Type)

	var payload map[string]any
	req.NoError(json.Unmarshal(frame.Payload, &payload))
	req.Equal("A", payload["senderId"])
	req.Equal("Alice", payload["senderName"])
	req.Equal("hi", payload["text"])
	req.Equal("2024-01-01T12:00:00Z", payload["sentAt"])
	req.EqualValues(7, payload["sequence"])
}
