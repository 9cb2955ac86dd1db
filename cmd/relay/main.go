package main

import (
	"chat-relay/contract"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
)

const shutdownTimeout = 5 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the relay, serves it over HTTP and blocks until a signal arrives.
// Deferred cleanups run before main exits.
func run() error {
	// A missing .env is fine, the environment may already be set
	_ = godotenv.Load()
	config, err := internal.LoadConfig()
	if err != nil {
		return err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	censor, err := newCensor(log, config)
	if err != nil {
		return err
	}

	stats := observability.NewStats()
	supervisor := workers.NewSupervisor(log, config.RestartInterval)
	relay := runtime.NewRelay(log, supervisor, stats, runtime.SystemClock{}, runtime.RelayConfig{
		BufferSize:       config.BufferSize,
		TypingTTL:        config.TypingTTL,
		SinkTimeout:      config.SinkTimeout,
		MaxMessageLength: config.MaxMessageLength,
		Censor:           censor,
	})
	relay.AddWorkers(workers.NewHeartbeatWorker(log, stats, config.MetricInterval))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	relayDone := make(chan struct{})
	go func() {
		defer close(relayDone)
		relay.Start(ctx)
	}()

	wsServer := websocket.NewServer(log, relay, config.ConnectionBufferSize)
	server := &http.Server{
		Addr:              config.Address(),
		Handler:           internal.NewRouter(wsServer, stats.Snapshot),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server.RegisterOnShutdown(wsServer.CloseAll)
	errChan := make(chan error, 1)
	go func() {
		log.Info("Starting relay server", "address", server.Addr, "typing_ttl", config.TypingTTL)
		if err := server.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case serveErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	relay.Stop()
	<-relayDone
	log.Info("Relay stopped cleanly")
	return serveErr
}

// newCensor loads the embedded dictionaries when moderation is enabled.
func newCensor(log *slog.Logger, config internal.Config) (contract.Censor, error) {
	if !config.ModerationEnabled {
		return nil, nil
	}
	replacement, err := config.CharacterRune()
	if err != nil {
		return nil, err
	}
	data, err := runtime.NewCensoredLoader(moderation.Dictionaries).LoadAll(moderation.DictionariesDir)
	if err != nil {
		return nil, fmt.Errorf("moderation dictionaries: %w", err)
	}
	moderator, err := moderation.NewModerator(data.Words, replacement, log)
	if err != nil {
		return nil, err
	}
	log.Info("Moderation enabled", "languages", data.Languages, "words", len(data.Words))
	return moderator, nil
}
