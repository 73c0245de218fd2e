package event

import (
	"time"

	"adopt-realtime/domain"
)

// Wire names of the server-to-client events.
const (
	NameUserJoinedChat      = "user_joined_chat"
	NameUserLeftChat        = "user_left_chat"
	NameUserTyping          = "user_typing"
	NameUserStoppedTyping   = "user_stopped_typing"
	NameMessagesRead        = "messages_read"
	NameReactionAdded       = "reaction_added"
	NameReactionRemoved     = "reaction_removed"
	NamePresenceUpdate      = "presence_update"
	NameOwnPresenceUpdate   = "own_presence_update"
	NamePresenceChanged     = "presence_changed"
	NameMessageNotification = "message_notification"
	NameNewMessage          = "new_message"
	NameNotification        = "notification"
	NameError               = "error"
)

type UserJoinedChat struct {
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserLeftChat struct {
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserTyping struct {
	UserID    string    `json:"userId"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

type UserStoppedTyping struct {
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

type MessagesRead struct {
	UserID    string    `json:"userId"`
	ChatID    string    `json:"chatId"`
	Timestamp time.Time `json:"timestamp"`
}

type ReactionUpdate struct {
	MessageID string                   `json:"messageId"`
	Emoji     string                   `json:"emoji"`
	UserID    string                   `json:"userId"`
	Reactions []domain.ReactionSummary `json:"reactions"`
	Timestamp time.Time                `json:"timestamp"`
}

// PresenceUpdate answers a get_presence query; keys are subject ids.
type PresenceUpdate map[string]domain.PresenceSnapshot

type OwnPresenceUpdate struct {
	Status   domain.PresenceStatus `json:"status"`
	LastSeen time.Time             `json:"lastSeen"`
}

// PresenceChanged is pushed when a subject transitions between online and
// offline through connect/disconnect.
type PresenceChanged struct {
	UserID   string                `json:"userId"`
	Status   domain.PresenceStatus `json:"status"`
	LastSeen time.Time             `json:"lastSeen"`
}

// MessageNotification tells other room members that a message persisted by
// the REST path is ready to fetch. TempID lets the sending client reconcile
// its optimistic echo.
type MessageNotification struct {
	MessageID      string    `json:"messageId"`
	ConversationID string    `json:"conversationId"`
	TempID         string    `json:"tempId,omitempty"`
	SenderID       string    `json:"senderId"`
	Timestamp      time.Time `json:"timestamp"`
}

type NewMessage struct {
	Message   domain.StoredMessage `json:"message"`
	ChatID    string               `json:"chatId"`
	Timestamp time.Time            `json:"timestamp"`
}
