package observability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"adopt-realtime/contract"
)

// StatsSource supplies the room and typing state the debug page reports
// alongside the raw counters.
type StatsSource interface {
	Counts() (roomCount, connectionCount int)
}

// DebugServer serves operational state on a separate port so the main
// listener stays realtime-only.
type DebugServer struct {
	httpServer *http.Server
	monitor    *Monitor
	source     StatsSource
	relay      contract.Broker
	log        *slog.Logger
}

func NewDebugServer(addr string, monitor *Monitor, source StatsSource, relay contract.Broker, log *slog.Logger) *DebugServer {
	s := &DebugServer{monitor: monitor, source: source, relay: relay, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/stats", s.serveStats)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *DebugServer) Start() error {
	s.log.Info("debug server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("debug server: %w", err)
	}
	return nil
}

func (s *DebugServer) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *DebugServer) serveStats(w http.ResponseWriter, _ *http.Request) {
	rooms, connections := s.source.Counts()

	payload := struct {
		Stats  Stats                 `json:"stats"`
		Rooms  int                   `json:"rooms"`
		Joined int                   `json:"joined_connections"`
		Broker contract.BrokerStatus `json:"broker"`
	}{
		Stats:  s.monitor.Snapshot(),
		Rooms:  rooms,
		Joined: connections,
		Broker: s.relay.Status(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Warn("stats encoding failed", "error", err)
	}
}
