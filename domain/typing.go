package domain

import "time"

// TypingRecord marks a subject as actively composing in one conversation.
// Records older than the store's expiry window must never be surfaced to
// other participants.
type TypingRecord struct {
	SubjectID   string    `json:"userId"`
	DisplayName string    `json:"displayName"`
	StartedAt   time.Time `json:"timestamp"`
}
