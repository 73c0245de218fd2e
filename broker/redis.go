package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"adopt-realtime/contract"
	"adopt-realtime/domain"
)

// Redis extends the relay across server instances over Redis Pub/Sub.
// Same contract as the NATS transport: local fan-out happens synchronously
// on Publish, remote copies are filtered by origin stamp.
type Redis struct {
	client     *redis.Client
	mu         sync.Mutex
	handlers   map[string]contract.BrokerHandler
	subs       map[string]*redis.PubSub
	instanceID string
	log        *slog.Logger
}

func NewRedis(addr string, log *slog.Logger) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &Redis{
		client:     client,
		handlers:   make(map[string]contract.BrokerHandler),
		subs:       make(map[string]*redis.PubSub),
		instanceID: uuid.NewString(),
		log:        log,
	}, nil
}

func (r *Redis) Publish(ctx context.Context, channel string, env domain.Envelope) error {
	env.Origin = r.instanceID

	r.mu.Lock()
	handler, ok := r.handlers[channel]
	r.mu.Unlock()
	if ok {
		handler(channel, env)
	}

	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	if err := r.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", channel, err)
	}
	return nil
}

func (r *Redis) Subscribe(channel string, handler contract.BrokerHandler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.subs[channel]; ok {
		r.handlers[channel] = handler
		return nil
	}

	pubsub := r.client.Subscribe(context.Background(), channel)
	r.handlers[channel] = handler
	r.subs[channel] = pubsub

	go r.consume(channel, pubsub)
	return nil
}

func (r *Redis) Unsubscribe(channel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if pubsub, ok := r.subs[channel]; ok {
		if err := pubsub.Close(); err != nil {
			return fmt.Errorf("redis unsubscribe %s: %w", channel, err)
		}
		delete(r.subs, channel)
	}
	delete(r.handlers, channel)
	return nil
}

func (r *Redis) Status() contract.BrokerStatus {
	r.mu.Lock()
	subscriptions := len(r.subs)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	connected := r.client.Ping(ctx).Err() == nil

	return contract.BrokerStatus{
		Connected:         connected,
		InstanceID:        r.instanceID,
		SubscriptionCount: subscriptions,
	}
}

func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for channel, pubsub := range r.subs {
		_ = pubsub.Close()
		delete(r.subs, channel)
	}
	r.handlers = make(map[string]contract.BrokerHandler)
	return r.client.Close()
}

// consume drains one channel's subscription until it is closed.
func (r *Redis) consume(channel string, pubsub *redis.PubSub) {
	for msg := range pubsub.Channel() {
		var env domain.Envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			r.log.Warn("dropping undecodable envelope", "channel", channel, "error", err)
			continue
		}
		if env.Origin == r.instanceID {
			continue
		}

		r.mu.Lock()
		handler, ok := r.handlers[channel]
		r.mu.Unlock()
		if ok {
			handler(channel, env)
		}
	}
}
