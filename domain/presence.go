package domain

import "time"

type PresenceStatus string

const (
	StatusOnline  PresenceStatus = "online"
	StatusAway    PresenceStatus = "away"
	StatusOffline PresenceStatus = "offline"
)

// PresenceRecord tracks one subject across all of their open connections.
// Invariant: Status is StatusOffline exactly when Connections is empty.
type PresenceRecord struct {
	SubjectID   string
	Status      PresenceStatus
	LastSeen    time.Time
	Connections map[ConnectionID]struct{}
}

// PresenceSnapshot is the read-only view answered to presence queries.
type PresenceSnapshot struct {
	Status   PresenceStatus `json:"status"`
	LastSeen time.Time      `json:"lastSeen"`
}
