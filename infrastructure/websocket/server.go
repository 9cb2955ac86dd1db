// Package websocket exposes the relay over WebSocket connections carrying
// JSON frames.
package websocket

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/runtime"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxFrameSize      = 16 * 1024
	maxDecodeFailures = 3

	CodeInvalidArgument = "INVALID_ARGUMENT"
)

// Dispatcher is the inbound side of the relay.
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd domain.Command) error
}

type Server struct {
	log                  *slog.Logger
	dispatcher           Dispatcher
	upgrader             websocket.Upgrader
	connectionBufferSize int

	mu      sync.Mutex
	clients map[*client]struct{}
}

func NewServer(log *slog.Logger, dispatcher Dispatcher, connectionBufferSize int) *Server {
	return &Server{
		log:        log,
		dispatcher: dispatcher,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		connectionBufferSize: connectionBufferSize,
		clients:              make(map[*client]struct{}),
	}
}

// CloseAll drops every open connection. Hijacked connections are not
// tracked by http.Server, so it is registered as a shutdown hook.
func (s *Server) CloseAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.conn.Close()
	}
	s.log.Info("WebSocket connections closed", "count", len(s.clients))
}

func (s *Server) track(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[c] = struct{}{}
}

func (s *Server) untrack(c *client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, c)
}

type client struct {
	id         domain.ParticipantID
	log        *slog.Logger
	conn       *websocket.Conn
	sink       *ConnectionSink
	dispatcher Dispatcher
}

// ServeHTTP upgrades the request and serves the connection until it closes.
// The connection id is assigned here and announced by the welcome frame.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("WebSocket upgrade failed", "error", err)
		return
	}

	c := &client{
		id:         domain.ParticipantID(uuid.NewString()),
		log:        s.log,
		conn:       conn,
		sink:       NewConnectionSink(s.connectionBufferSize),
		dispatcher: s.dispatcher,
	}
	ctx := r.Context()
	if err := s.dispatcher.Dispatch(ctx, runtime.ConnectCommand{Connection: c.id, Sink: c.sink}); err != nil {
		s.log.Warn("Connection refused", "connection_id", c.id, "error", err)
		_ = conn.Close()
		return
	}
	s.log.Debug("Connection accepted", "connection_id", c.id, "remote_addr", r.RemoteAddr)
	s.track(c)
	defer s.untrack(c)

	done := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		c.writePump(done)
	}()

	c.readPump(ctx)

	// The relay may already be closed, the connection is gone either way
	if err := s.dispatcher.Dispatch(context.Background(), domain.DisconnectCommand{Connection: c.id}); err != nil {
		s.log.Debug("Disconnect not dispatched", "connection_id", c.id, "error", err)
	}
	close(done)
	<-writerDone
}

// readPump turns inbound frames into relay commands.
// It never closes the connection, the write pump does once done is closed.
func (c *client) readPump(ctx context.Context) {
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	failures := 0
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("WebSocket read failed", "connection_id", c.id, "error", err)
			}
			return
		}

		cmd, err := DecodeCommand(c.id, data)
		if err != nil {
			failures++
			c.log.Debug("Invalid frame", "connection_id", c.id, "error", err, "failures", failures)
			rejected := event.CommandRejected{Connection: c.id, Code: CodeInvalidArgument, Reason: err.Error()}
			rejectCtx, cancel := context.WithTimeout(ctx, writeWait)
			err = c.sink.Consume(rejectCtx, rejected)
			cancel()
			if err != nil {
				return
			}
			if failures >= maxDecodeFailures {
				c.log.Warn("Too many invalid frames, closing", "connection_id", c.id)
				return
			}
			continue
		}
		failures = 0

		if err := c.dispatcher.Dispatch(ctx, cmd); err != nil {
			c.log.Debug("Command not dispatched", "connection_id", c.id, "error", err)
			return
		}
	}
}

// writePump is the only writer of the connection.
// It sends the welcome frame first, then relay events and pings.
func (c *client) writePump(done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	if err := c.write(Welcome{ParticipantID: c.id}); err != nil {
		return
	}
	for {
		select {
		case <-done:
			c.drain()
			c.close(websocket.CloseNormalClosure, "")
			return
		case <-c.sink.Overflow():
			c.log.Warn("Slow consumer, closing connection", "connection_id", c.id)
			c.close(websocket.ClosePolicyViolation, "slow consumer")
			return
		case e := <-c.sink.Events():
			if err := c.write(e); err != nil {
				c.log.Debug("WebSocket write failed", "connection_id", c.id, "error", err)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain writes what is already buffered, rejections of the last frames included.
func (c *client) drain() {
	for {
		select {
		case e := <-c.sink.Events():
			if err := c.write(e); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *client) write(e event.DomainEvent) error {
	frame, err := EncodeEvent(e)
	if err != nil {
		c.log.Error("Event not encodable", "event", e.EventType(), "error", err)
		return nil
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *client) close(code int, reason string) {
	message := websocket.FormatCloseMessage(code, reason)
	_ = c.conn.WriteControl(websocket.CloseMessage, message, time.Now().Add(writeWait))
}
