package main

import (
	"bufio"
	"chat-relay/domain"
	"chat-relay/infrastructure/websocket"
	"chat-relay/projection"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	gorilla "github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, _, err := gorilla.DefaultDialer.DialContext(ctx, config.ServerAddress, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to relay at %s: %w", config.ServerAddress, err)
	}
	defer func() {
		log.Info("Closing connection...")
		_ = conn.Close()
	}()

	printer := newPrinter(os.Stdout, config.Colours)
	timeline := projection.NewTimeline()
	readErr := make(chan error, 1)
	go func() { readErr <- receive(ctx, log, conn, timeline, printer) }()

	if err := sendCommand(conn, domain.JoinCommand{DisplayName: config.DisplayName}); err != nil {
		return exitRuntime, err
	}
	printer.info(fmt.Sprintf("Connected to %s as %s. /who, /typing, /quit", config.ServerAddress, config.DisplayName))

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case err := <-readErr:
			if ctx.Err() != nil || gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			input := parseInput(line)
			switch input.action {
			case actionQuit:
				return exitOK, nil
			case actionWho:
				printRoster(os.Stdout, timeline.Roster(), timeline.Self())
			case actionSend:
				if err := sendCommand(conn, input.command); err != nil {
					return exitRuntime, err
				}
			}
		}
	}
}

// receive is the only reader of the connection.
func receive(ctx context.Context, log *slog.Logger, conn *gorilla.Conn, timeline *projection.Timeline, p *printer) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		e, err := websocket.DecodeEvent(data)
		if err != nil {
			log.Warn("Unreadable frame", "error", err)
			continue
		}
		if welcome, ok := e.(websocket.Welcome); ok {
			timeline.SetSelf(welcome.ParticipantID)
			continue
		}
		if err := timeline.Consume(ctx, e); err != nil {
			return err
		}
		if line := p.render(e, timeline); line != "" {
			p.println(line)
		}
	}
}

func sendCommand(conn *gorilla.Conn, cmd domain.Command) error {
	frame, err := websocket.EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return conn.WriteJSON(frame)
}
