package broker

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"adopt-realtime/domain"
)

func TestMemory_Publish_Delivers_To_Exact_Channel(t *testing.T) {
	req := require.New(t)
	relay := NewMemory(slog.New(slog.DiscardHandler))

	var delivered []domain.Envelope
	err := relay.Subscribe(ChatChannel("chat-1"), func(_ string, env domain.Envelope) {
		delivered = append(delivered, env)
	})
	req.NoError(err)

	// When publishing to the subscribed channel and a sibling channel
	err = relay.Publish(context.Background(), ChatChannel("chat-1"), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          "new_message",
		ConversationID: "chat-1",
	})
	req.NoError(err)
	err = relay.Publish(context.Background(), ChatChannel("chat-2"), domain.Envelope{
		Kind:           domain.KindMessage,
		Event:          "new_message",
		ConversationID: "chat-2",
	})
	req.NoError(err)

	// Then only the exact channel's handler ran
	req.Len(delivered, 1)
	req.Equal("chat-1", delivered[0].ConversationID)
}

func TestMemory_Publish_Stamps_Origin(t *testing.T) {
	req := require.New(t)
	relay := NewMemory(slog.New(slog.DiscardHandler))

	var delivered domain.Envelope
	req.NoError(relay.Subscribe(SystemChannel, func(_ string, env domain.Envelope) {
		delivered = env
	}))

	// When publishing an envelope without an origin
	req.NoError(relay.Publish(context.Background(), SystemChannel, domain.Envelope{
		Kind:  domain.KindSystem,
		Event: "notification",
	}))

	// Then the relay stamped its own instance id
	req.Equal(relay.Status().InstanceID, delivered.Origin)
}

func TestMemory_Publish_Without_Subscriber_Is_Noop(t *testing.T) {
	req := require.New(t)
	relay := NewMemory(slog.New(slog.DiscardHandler))

	err := relay.Publish(context.Background(), TypingChannel("chat-1"), domain.Envelope{
		Kind:  domain.KindTyping,
		Event: "user_typing",
	})
	req.NoError(err)
}

func TestMemory_Unsubscribe_Stops_Delivery(t *testing.T) {
	req := require.New(t)
	relay := NewMemory(slog.New(slog.DiscardHandler))

	deliveries := 0
	req.NoError(relay.Subscribe(StatusChannel("user-1"), func(string, domain.Envelope) {
		deliveries++
	}))
	req.Equal(1, relay.Status().SubscriptionCount)

	// When unsubscribing and publishing again
	req.NoError(relay.Unsubscribe(StatusChannel("user-1")))
	req.NoError(relay.Publish(context.Background(), StatusChannel("user-1"), domain.Envelope{
		Kind:  domain.KindPresence,
		Event: "presence_changed",
	}))

	// Then the handler is gone
	req.Zero(deliveries)
	req.Zero(relay.Status().SubscriptionCount)
}

func TestChannel_Names(t *testing.T) {
	req := require.New(t)

	req.Equal("chat:42", ChatChannel("42"))
	req.Equal("chat:42:typing", TypingChannel("42"))
	req.Equal("user:7:status", StatusChannel("7"))
	req.Equal("system:broadcast", SystemChannel)
}
