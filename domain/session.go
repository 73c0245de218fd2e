// Package domain contains core concepts of the realtime coordination layer.
// This file defines the Session bound to each live connection.
// No transport, broker, or persistence logic should be added here.
package domain

import "time"

type Role string

const (
	RoleAdopter     Role = "adopter"
	RoleRescueStaff Role = "rescue_staff"
	RoleAdmin       Role = "admin"
)

// ConnectionID identifies a single live connection. One subject may hold
// several at the same time (multiple tabs or devices).
type ConnectionID string

// Session binds an authenticated identity to exactly one connection.
// It is created at handshake time and never mutated afterwards;
// re-authentication requires a new connection.
type Session struct {
	ConnectionID ConnectionID
	SubjectID    string
	Role         Role
	RescueID     string // optional tenant affiliation, empty for adopters
	ConnectedAt  time.Time
}
