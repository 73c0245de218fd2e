package broker

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"adopt-realtime/contract"
	"adopt-realtime/domain"
)

// Memory is the single-process transport: Publish synchronously invokes the
// handler registered for that exact channel, preserving wall-clock FIFO
// order within the process. There is nothing to connect to, so it is always
// connected.
type Memory struct {
	mu         sync.RWMutex
	handlers   map[string]contract.BrokerHandler
	instanceID string
	log        *slog.Logger
}

func NewMemory(log *slog.Logger) *Memory {
	return &Memory{
		handlers:   make(map[string]contract.BrokerHandler),
		instanceID: uuid.NewString(),
		log:        log,
	}
}

func (m *Memory) Publish(_ context.Context, channel string, env domain.Envelope) error {
	env.Origin = m.instanceID

	m.mu.RLock()
	handler, ok := m.handlers[channel]
	m.mu.RUnlock()

	if !ok {
		// Nobody local is interested in this channel.
		return nil
	}
	handler(channel, env)
	return nil
}

func (m *Memory) Subscribe(channel string, handler contract.BrokerHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[channel] = handler
	return nil
}

func (m *Memory) Unsubscribe(channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, channel)
	return nil
}

func (m *Memory) Status() contract.BrokerStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return contract.BrokerStatus{
		Connected:         true,
		InstanceID:        m.instanceID,
		SubscriptionCount: len(m.handlers),
	}
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = make(map[string]contract.BrokerHandler)
	return nil
}
