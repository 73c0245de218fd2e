package contract

import (
	"context"

	"adopt-realtime/domain"
)

// ConversationStore is the persistence collaborator. Message storage,
// history, reactions and read tracking live behind it; the realtime layer
// only asks questions and delegates writes.
type ConversationStore interface {
	IsParticipant(ctx context.Context, conversationID, subjectID string) (bool, error)
	MarkMessagesRead(ctx context.Context, conversationID, subjectID string) error
	AddReaction(ctx context.Context, messageID, subjectID, emoji string) ([]domain.ReactionSummary, error)
	RemoveReaction(ctx context.Context, messageID, subjectID, emoji string) ([]domain.ReactionSummary, error)
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.StoredMessage, error)
}

// EventSink delivers outbound events to one live connection.
// Send must not block: a sink whose buffer is full reports an error and the
// event is dropped for that connection only.
type EventSink interface {
	Send(event string, payload any) error
	Close() error
}

// BrokerHandler consumes envelopes delivered for one channel.
type BrokerHandler func(channel string, env domain.Envelope)

// Broker is the publish/subscribe boundary between "an event happened" and
// "who receives it". Channel names are global strings, never process-local
// handles, so a distributed transport can be swapped in without touching
// any caller.
type Broker interface {
	Publish(ctx context.Context, channel string, env domain.Envelope) error
	Subscribe(channel string, handler BrokerHandler) error
	Unsubscribe(channel string) error
	Status() BrokerStatus
	Close() error
}

// BrokerStatus is the observability view of a transport.
type BrokerStatus struct {
	Connected         bool   `json:"connected"`
	InstanceID        string `json:"instanceId"`
	SubscriptionCount int    `json:"subscriptionCount"`
}
