// Package observability aggregates live counters about the realtime layer.
package observability

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// Stats is the snapshot served by the debug endpoint.
type Stats struct {
	ActiveConnections int64     `json:"active_connections"`
	PeakConnections   int64     `json:"peak_connections"`
	AuthRefusals      uint64    `json:"auth_refusals"`
	EventsHandled     uint64    `json:"events_handled"`
	EventErrors       uint64    `json:"event_errors"`
	Broadcasts        uint64    `json:"broadcasts"`
	StartedAt         time.Time `json:"started_at"`
}

// Monitor is written from the hot path with atomic counters only; the
// debug endpoint reads a consistent-enough snapshot without ever blocking
// a handler.
type Monitor struct {
	log       *slog.Logger
	startedAt time.Time

	activeConnections atomic.Int64
	peakConnections   atomic.Int64
	authRefusals      atomic.Uint64
	eventsHandled     atomic.Uint64
	eventErrors       atomic.Uint64
	broadcasts        atomic.Uint64
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{log: log, startedAt: time.Now().UTC()}
}

func (m *Monitor) ConnectionOpened() {
	current := m.activeConnections.Add(1)
	for {
		peak := m.peakConnections.Load()
		if current <= peak || m.peakConnections.CompareAndSwap(peak, current) {
			return
		}
	}
}

func (m *Monitor) ConnectionClosed() {
	if m.activeConnections.Add(-1) < 0 {
		m.log.Warn("connection counter went negative, resetting")
		m.activeConnections.Store(0)
	}
}

func (m *Monitor) AuthRefused()  { m.authRefusals.Add(1) }
func (m *Monitor) EventHandled() { m.eventsHandled.Add(1) }
func (m *Monitor) EventFailed()  { m.eventErrors.Add(1) }
func (m *Monitor) Broadcast()    { m.broadcasts.Add(1) }

func (m *Monitor) Snapshot() Stats {
	return Stats{
		ActiveConnections: m.activeConnections.Load(),
		PeakConnections:   m.peakConnections.Load(),
		AuthRefusals:      m.authRefusals.Load(),
		EventsHandled:     m.eventsHandled.Load(),
		EventErrors:       m.eventErrors.Load(),
		Broadcasts:        m.broadcasts.Load(),
		StartedAt:         m.startedAt,
	}
}
