package e2e

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/gookit/color"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

// BaseWsSuite runs a fresh in-process relay behind a real HTTP server for every test.
type BaseWsSuite struct {
	suite.Suite
	Config Config

	server *httptest.Server
	relay  *runtime.Relay
	cancel context.CancelFunc
	done   chan struct{}
	peers  []*Peer
}

func (s *BaseWsSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
}

func (s *BaseWsSuite) SetupTest() {
	log := logs.GetLoggerFromLevel(slog.LevelWarn)
	stats := observability.NewStats()
	s.relay = runtime.NewRelay(log, workers.NewSupervisor(log, 50*time.Millisecond), stats,
		runtime.SystemClock{}, runtime.RelayConfig{
			BufferSize:       256,
			TypingTTL:        s.Config.TypingTTL,
			SinkTimeout:      time.Second,
			MaxMessageLength: 2000,
		})

	var ctx context.Context
	ctx, s.cancel = context.WithCancel(context.Background())
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.relay.Start(ctx)
	}()

	wsServer := websocket.NewServer(log, s.relay, 64)
	s.server = httptest.NewServer(internal.NewRouter(wsServer, stats.Snapshot))
}

func (s *BaseWsSuite) TearDownTest() {
	for _, p := range s.peers {
		p.Close()
	}
	s.peers = nil
	s.server.Close()
	s.relay.Stop()
	s.cancel()
	<-s.done
}

// Step prints a colorized header for a scenario step.
func (s *BaseWsSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Peer is one WebSocket client of the relay.
type Peer struct {
	s          *BaseWsSuite
	Name       string
	ID         domain.ParticipantID
	Introduced []string // names already online at join time
	conn       *gorilla.Conn
}

// Connect opens a socket and waits for the welcome frame.
func (s *BaseWsSuite) Connect(name string) *Peer {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err, "Failed to connect to relay at "+url)

	p := &Peer{s: s, Name: name, conn: conn}
	s.peers = append(s.peers, p)
	welcome, ok := p.Next().(websocket.Welcome)
	s.Require().True(ok, "first frame must be welcome")
	p.ID = welcome.ParticipantID
	return p
}

// Join connects and joins, consuming the introductions of the participants
// already online then the own presence event.
func (s *BaseWsSuite) Join(name string) *Peer {
	p := s.Connect(name)
	p.Send(domain.JoinCommand{DisplayName: name})
	for {
		presence := ExpectEvent[event.PresenceChanged](p)
		s.Require().Equal(event.Joined, presence.Kind)
		if presence.ParticipantID == p.ID {
			return p
		}
		p.Introduced = append(p.Introduced, presence.DisplayName)
	}
}

func (p *Peer) Send(cmd domain.Command) {
	frame, err := websocket.EncodeCommand(cmd)
	p.s.Require().NoError(err)
	p.s.Require().NoError(p.conn.WriteJSON(frame))
}

// Next blocks for the next frame, within the configured read timeout.
func (p *Peer) Next() event.DomainEvent {
	p.s.Require().NoError(p.conn.SetReadDeadline(time.Now().Add(p.s.Config.ReadTimeout)))
	_, data, err := p.conn.ReadMessage()
	p.s.Require().NoError(err, "%s did not receive a frame", p.Name)
	if p.s.Config.DebugJSON {
		p.s.T().Logf("%s <- %s", p.Name, data)
	}
	e, err := websocket.DecodeEvent(data)
	p.s.Require().NoError(err)
	return e
}

// Silent asserts nothing arrives during d.
func (p *Peer) Silent(d time.Duration) {
	p.s.Require().NoError(p.conn.SetReadDeadline(time.Now().Add(d)))
	_, data, err := p.conn.ReadMessage()
	p.s.Require().Error(err, "%s received %s", p.Name, data)
	var netErr interface{ Timeout() bool }
	p.s.Require().ErrorAs(err, &netErr)
	p.s.Require().True(netErr.Timeout())
}

func (p *Peer) Close() {
	_ = p.conn.WriteMessage(gorilla.CloseMessage, gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, ""))
	_ = p.conn.Close()
}

// ExpectEvent reads the next frame and requires it to be a T.
func ExpectEvent[T event.DomainEvent](p *Peer) T {
	e := p.Next()
	evt, ok := e.(T)
	p.s.Require().True(ok, "%s expected %T, got %T", p.Name, *new(T), e)
	return evt
}

// Stats reads the debug counters over HTTP.
func (s *BaseWsSuite) Stats() observability.Snapshot {
	resp, err := http.Get(s.server.URL + "/debug/stats")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Require().Equal(http.StatusOK, resp.StatusCode)

	var snapshot observability.Snapshot
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&snapshot))
	return snapshot
}
