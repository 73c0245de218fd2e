package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"adopt-realtime/auth"
	"adopt-realtime/contract"
	"adopt-realtime/domain"
	"adopt-realtime/observability"
)

// ConnectDispatcher is the dispatcher surface the server drives: one
// registration per accepted socket, plus the per-connection event loop.
type ConnectDispatcher interface {
	Dispatcher
	Connect(ctx context.Context, session domain.Session, sink contract.EventSink)
}

// Server owns the HTTP listener and upgrades authenticated requests into
// realtime connections. Authentication runs before the upgrade: a bad or
// missing token is refused with a plain HTTP status, never a websocket.
type Server struct {
	httpServer *http.Server
	gateway    *auth.Gateway
	dispatcher ConnectDispatcher
	monitor    *observability.Monitor
	upgrader   websocket.Upgrader
	sendBuffer int
	log        *slog.Logger
}

func NewServer(
	addr string,
	gateway *auth.Gateway,
	dispatcher ConnectDispatcher,
	monitor *observability.Monitor,
	sendBuffer int,
	log *slog.Logger,
) *Server {
	s := &Server{
		gateway:    gateway,
		dispatcher: dispatcher,
		monitor:    monitor,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browser clients authenticate with a bearer token, not a
			// cookie, so cross-origin upgrades carry no ambient authority.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sendBuffer: sendBuffer,
		log:        log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler exposes the mux for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start blocks serving until the listener closes.
func (s *Server) Start() error {
	s.log.Info("websocket server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("websocket server: %w", err)
	}
	return nil
}

// Shutdown stops accepting upgrades and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	session, err := s.gateway.Authenticate(r)
	if err != nil {
		s.monitor.AuthRefused()
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "user", session.SubjectID, "error", err)
		return
	}

	conn := NewConn(ws, session, s.sendBuffer, s.log)
	s.dispatcher.Connect(r.Context(), session, conn)
	conn.Start(context.Background(), s.dispatcher)
}
