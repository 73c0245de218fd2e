package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"adopt-realtime/auth"
	"adopt-realtime/broker"
	"adopt-realtime/contract"
	"adopt-realtime/dispatch"
	"adopt-realtime/observability"
	"adopt-realtime/store"
	"adopt-realtime/websocket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run wires all components and owns the server lifecycle, so every defer
// executes before main exits and shutdown stays in one place.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Broadcast relay transport
	relay, err := buildRelay(config, log)
	if err != nil {
		return fmt.Errorf("relay setup failed: %w", err)
	}
	defer func() {
		log.Info("Closing relay...")
		_ = relay.Close()
	}()

	// 3. Core components
	conversations := store.NewClient(config.ConversationStoreURL, config.StoreTimeout, log)
	monitor := observability.NewMonitor(log)
	dispatcher := dispatch.NewDispatcher(log, conversations, relay, monitor, config.TypingExpiry)
	gateway := auth.NewGateway(auth.NewTokenVerifier(config.JWTSecret), log)

	// 4. Servers
	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := websocket.NewServer(address, gateway, dispatcher, monitor, config.SendBufferSize, log)

	debugAddress := fmt.Sprintf("%s:%d", config.Host, config.DebugPort)
	debugServer := observability.NewDebugServer(debugAddress, monitor, dispatcher, relay, log)

	// 5. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Use an error channel to capture Serve() issues
	errChan := make(chan error, 2)
	go func() {
		log.Info("Starting realtime server", "address", address, "at", time.Now().UTC())
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()
	go func() {
		if err := debugServer.Start(); err != nil {
			errChan <- err
		}
	}()

	// 6. Wait for Stop or Error
	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
	case err := <-errChan:
		return err
	}

	// 7. Final Cleanup
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = debugServer.Shutdown(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	log.Info("Program stopped cleanly")

	return nil
}

func buildRelay(config Config, log *slog.Logger) (contract.Broker, error) {
	switch config.BrokerTransport {
	case "nats":
		return broker.NewNats(config.NatsURL, log)
	case "redis":
		return broker.NewRedis(config.RedisAddr, log)
	case "memory", "":
		return broker.NewMemory(log), nil
	default:
		return nil, fmt.Errorf("unknown broker transport %q", config.BrokerTransport)
	}
}
