// Package rooms maps live connections into named fan-out groups.
package rooms

import (
	"strings"
	"sync"

	"adopt-realtime/domain"
)

// Room is a named membership group: one per subject for direct
// notifications, one per conversation for fan-out.
type Room string

func Subject(subjectID string) Room {
	return Room("subject:" + subjectID)
}

func Conversation(conversationID string) Room {
	return Room("conversation:" + conversationID)
}

// ConversationID returns the conversation behind this room, if it is a
// conversation room.
func (r Room) ConversationID() (string, bool) {
	return strings.CutPrefix(string(r), "conversation:")
}

type memberSet map[domain.ConnectionID]struct{}

// Registry is the room membership manager. It keeps both directions of the
// mapping so a disconnect can drop a connection from every room it joined
// without scanning the whole table.
//
// No ordering guarantee exists between a join and a concurrently published
// broadcast; a message published before the join completes may be missed by
// that connection.
type Registry struct {
	mu      sync.RWMutex
	members map[Room]memberSet
	joined  map[domain.ConnectionID]map[Room]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		members: make(map[Room]memberSet),
		joined:  make(map[domain.ConnectionID]map[Room]struct{}),
	}
}

// Join adds the connection to the room. Idempotent.
func (r *Registry) Join(conn domain.ConnectionID, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[room]; !ok {
		r.members[room] = make(memberSet)
	}
	r.members[room][conn] = struct{}{}

	if _, ok := r.joined[conn]; !ok {
		r.joined[conn] = make(map[Room]struct{})
	}
	r.joined[conn][room] = struct{}{}
}

// Leave removes the connection from the room. No-op if absent. Empty rooms
// are pruned so the maps do not grow with dead conversation ids.
func (r *Registry) Leave(conn domain.ConnectionID, room Room) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(conn, room)
}

func (r *Registry) leaveLocked(conn domain.ConnectionID, room Room) {
	if set, ok := r.members[room]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if set, ok := r.joined[conn]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, conn)
		}
	}
}

// IsMember reports whether the connection is currently in the room.
func (r *Registry) IsMember(conn domain.ConnectionID, room Room) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[room][conn]
	return ok
}

// MembersOf returns the connections currently joined to the room.
func (r *Registry) MembersOf(room Room) []domain.ConnectionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[room]
	if !ok {
		return nil
	}
	members := make([]domain.ConnectionID, 0, len(set))
	for conn := range set {
		members = append(members, conn)
	}
	return members
}

// RoomsOf returns every room the connection has joined.
func (r *Registry) RoomsOf(conn domain.ConnectionID) []Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.joined[conn]
	if !ok {
		return nil
	}
	joined := make([]Room, 0, len(set))
	for room := range set {
		joined = append(joined, room)
	}
	return joined
}

// DropConnection removes the connection from every room it had joined.
// Called exactly once per connection, on disconnect.
func (r *Registry) DropConnection(conn domain.ConnectionID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[conn] {
		r.leaveLocked(conn, room)
	}
	delete(r.joined, conn)
}

// Counts reports room and connection totals for monitoring.
func (r *Registry) Counts() (roomCount, connectionCount int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members), len(r.joined)
}
