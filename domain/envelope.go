package domain

import (
	"encoding/json"
	"time"
)

type EnvelopeKind string

const (
	KindMessage  EnvelopeKind = "message"
	KindTyping   EnvelopeKind = "typing"
	KindPresence EnvelopeKind = "presence"
	KindSystem   EnvelopeKind = "system"
)

// Envelope is the unit exchanged through the broadcast relay.
//
// Origin carries the instance id of the publishing server so a distributed
// transport can drop envelopes it published itself instead of re-delivering
// them in a loop. Exclude names a connection that must not receive the
// envelope (the one that triggered it); it is only meaningful on the
// instance that owns that connection.
type Envelope struct {
	Kind           EnvelopeKind    `json:"kind"`
	Event          string          `json:"event"`
	Payload        json.RawMessage `json:"payload,omitempty"`
	ConversationID string          `json:"conversationId,omitempty"`
	SubjectID      string          `json:"subjectId,omitempty"`
	Exclude        ConnectionID    `json:"excludeConnection,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
	Origin         string          `json:"origin"`
}
