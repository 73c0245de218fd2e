package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"adopt-realtime/contract"
	"adopt-realtime/domain"
)

// Nats extends the relay across server instances over NATS core pub/sub.
//
// Publish fans out locally first, then puts the envelope on the wire; the
// wire copy comes back to every instance including this one, and the
// origin stamp is what keeps it from being delivered here twice. Delivery
// between instances is at-most-once, which matches the ephemeral nature of
// presence and typing traffic.
type Nats struct {
	conn       *nats.Conn
	mu         sync.Mutex
	handlers   map[string]contract.BrokerHandler
	subs       map[string]*nats.Subscription
	instanceID string
	log        *slog.Logger
}

func NewNats(url string, log *slog.Logger) (*Nats, error) {
	instanceID := uuid.NewString()
	conn, err := nats.Connect(url,
		nats.Name("adopt-realtime-"+instanceID),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Nats{
		conn:       conn,
		handlers:   make(map[string]contract.BrokerHandler),
		subs:       make(map[string]*nats.Subscription),
		instanceID: instanceID,
		log:        log,
	}, nil
}

func (n *Nats) Publish(_ context.Context, channel string, env domain.Envelope) error {
	env.Origin = n.instanceID

	n.mu.Lock()
	handler, ok := n.handlers[channel]
	n.mu.Unlock()
	if ok {
		handler(channel, env)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := n.conn.Publish(channel, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", channel, err)
	}
	return nil
}

func (n *Nats) Subscribe(channel string, handler contract.BrokerHandler) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.subs[channel]; ok {
		n.handlers[channel] = handler
		return nil
	}

	sub, err := n.conn.Subscribe(channel, func(msg *nats.Msg) {
		var env domain.Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			n.log.Warn("dropping undecodable envelope", "channel", channel, "error", err)
			return
		}
		if env.Origin == n.instanceID {
			// Our own publication echoed back; local fan-out already happened.
			return
		}
		n.dispatch(channel, env)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", channel, err)
	}

	n.handlers[channel] = handler
	n.subs[channel] = sub
	return nil
}

func (n *Nats) Unsubscribe(channel string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if sub, ok := n.subs[channel]; ok {
		if err := sub.Unsubscribe(); err != nil {
			return fmt.Errorf("nats unsubscribe %s: %w", channel, err)
		}
		delete(n.subs, channel)
	}
	delete(n.handlers, channel)
	return nil
}

func (n *Nats) Status() contract.BrokerStatus {
	n.mu.Lock()
	defer n.mu.Unlock()
	return contract.BrokerStatus{
		Connected:         n.conn.IsConnected(),
		InstanceID:        n.instanceID,
		SubscriptionCount: len(n.subs),
	}
}

func (n *Nats) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for channel, sub := range n.subs {
		_ = sub.Unsubscribe()
		delete(n.subs, channel)
	}
	n.handlers = make(map[string]contract.BrokerHandler)
	return n.conn.Drain()
}

func (n *Nats) dispatch(channel string, env domain.Envelope) {
	n.mu.Lock()
	handler, ok := n.handlers[channel]
	n.mu.Unlock()
	if ok {
		handler(channel, env)
	}
}
