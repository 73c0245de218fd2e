// Package services exposes the realtime layer to the rest of the backend.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"adopt-realtime/broker"
	"adopt-realtime/contract"
	"adopt-realtime/domain"
	"adopt-realtime/domain/event"
)

// RealtimeService is the server-side facade: other backend components push
// notifications and messages into the relay without touching sockets or
// rooms directly.
type RealtimeService struct {
	relay contract.Broker
	log   *slog.Logger
}

func NewRealtimeService(relay contract.Broker, log *slog.Logger) *RealtimeService {
	return &RealtimeService{relay: relay, log: log}
}

// NotifyUser delivers a notification to every open connection of one
// subject, on this instance and its peers.
func (s *RealtimeService) NotifyUser(ctx context.Context, subjectID string, notification domain.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now().UTC()
	}

	return s.publish(ctx, broker.StatusChannel(subjectID), domain.Envelope{
		Kind:      domain.KindSystem,
		Event:     event.NameNotification,
		SubjectID: subjectID,
	}, notification)
}

// NotifyChat pushes a freshly stored message to a conversation's members.
func (s *RealtimeService) NotifyChat(ctx context.Context, conversationID string, msg domain.StoredMessage) error {
	return s.publish(ctx, broker.ChatChannel(conversationID), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          event.NameNewMessage,
		ConversationID: conversationID,
	}, event.NewMessage{
		Message:   msg,
		ChatID:    conversationID,
		Timestamp: time.Now().UTC(),
	})
}

// BroadcastSystem fans a notification out to every connected client.
func (s *RealtimeService) BroadcastSystem(ctx context.Context, notification domain.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.Timestamp.IsZero() {
		notification.Timestamp = time.Now().UTC()
	}

	return s.publish(ctx, broker.SystemChannel, domain.Envelope{
		Kind:  domain.KindSystem,
		Event: event.NameNotification,
	}, notification)
}

func (s *RealtimeService) publish(ctx context.Context, channel string, env domain.Envelope, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	env.Payload = data
	env.Timestamp = time.Now().UTC()

	if err := s.relay.Publish(ctx, channel, env); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	s.log.Debug("published", "channel", channel, "event", env.Event)
	return nil
}
