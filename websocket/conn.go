// Package websocket carries the realtime protocol over gorilla websockets.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"adopt-realtime/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 32 * 1024
)

// Dispatcher is the slice of the event dispatcher a connection needs.
type Dispatcher interface {
	HandleEvent(ctx context.Context, conn domain.ConnectionID, raw []byte)
	Disconnect(conn domain.ConnectionID)
}

// outFrame is the wire shape of every server-to-client event.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Conn pairs one websocket with its session and pumps frames both ways.
// It implements contract.EventSink: Send never blocks, a full buffer means
// the client is too slow and the frame is dropped with an error.
type Conn struct {
	ws      *websocket.Conn
	session domain.Session
	log     *slog.Logger

	send chan []byte
	done chan struct{}
}

func NewConn(ws *websocket.Conn, session domain.Session, sendBuffer int, log *slog.Logger) *Conn {
	return &Conn{
		ws:      ws,
		session: session,
		log:     log,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
	}
}

func (c *Conn) Session() domain.Session {
	return c.session
}

// Send queues one event frame for the client. Non-blocking: returns an
// error when the connection is closing or the send buffer is full.
func (c *Conn) Send(event string, payload any) error {
	frame, err := json.Marshal(outFrame{Event: event, Data: payload})
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errors.New("connection closed")
	default:
	}

	select {
	case c.send <- frame:
		return nil
	default:
		return errors.New("send buffer full")
	}
}

// Close stops the write pump and closes the socket. Safe to call more
// than once.
func (c *Conn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return c.ws.Close()
}

// Start runs the pumps. Blocks until the read side ends, then reports the
// disconnect so the dispatcher runs its cleanup exactly once.
func (c *Conn) Start(ctx context.Context, dispatcher Dispatcher) {
	go c.writePump()
	c.readPump(ctx, dispatcher)
	dispatcher.Disconnect(c.session.ConnectionID)
	_ = c.Close()
}

func (c *Conn) readPump(ctx context.Context, dispatcher Dispatcher) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn("websocket read failed",
					"user", c.session.SubjectID,
					"connection", string(c.session.ConnectionID),
					"error", err)
			}
			return
		}
		dispatcher.HandleEvent(ctx, c.session.ConnectionID, raw)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
