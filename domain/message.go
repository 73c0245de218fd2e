package domain

import "time"

// StoredMessage is the Conversation Store's view of a persisted chat
// message, relayed as-is in new_message broadcasts. The realtime layer
// never stores messages itself.
type StoredMessage struct {
	MessageID   string    `json:"messageId"`
	ChatID      string    `json:"chatId"`
	SenderID    string    `json:"senderId"`
	Content     string    `json:"content"`
	ContentType string    `json:"type"`
	CreatedAt   time.Time `json:"createdAt"`
}

// SendMessageCommand carries the deprecated direct-send path to the store.
type SendMessageCommand struct {
	ChatID      string `json:"chatId"`
	SenderID    string `json:"senderId"`
	Content     string `json:"content"`
	ContentType string `json:"type"`
}

// ReactionSummary aggregates one emoji's reactions on a message.
type ReactionSummary struct {
	Emoji string   `json:"emoji"`
	Count int      `json:"count"`
	Users []string `json:"users"`
}

// Notification is a server-initiated push to one subject's private room.
type Notification struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}
