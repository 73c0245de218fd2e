// Package presence derives each subject's online status from their set of
// open connections plus an explicit override.
package presence

import (
	"sync"
	"time"

	"adopt-realtime/domain"
)

// Tracker owns the presence map. Presence is connection-counted: any one of
// N open connections keeps the subject online, and only the Nth disconnect
// flips them offline. Records are created lazily and never deleted; a stale
// record with no connections simply reads as offline.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*domain.PresenceRecord
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*domain.PresenceRecord),
		now:     time.Now,
	}
}

// Connect registers an open connection handle for the subject and reports
// whether this flipped them from offline to online.
func (t *Tracker) Connect(subjectID string, conn domain.ConnectionID) (cameOnline bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := t.record(subjectID)
	record.Connections[conn] = struct{}{}
	record.LastSeen = t.now()

	if record.Status == domain.StatusOffline {
		record.Status = domain.StatusOnline
		return true
	}
	return false
}

// Disconnect removes the handle and reports whether the subject went
// offline. Only the removal of the last handle flips the status.
func (t *Tracker) Disconnect(subjectID string, conn domain.ConnectionID) (wentOffline bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, ok := t.records[subjectID]
	if !ok {
		return false
	}
	delete(record.Connections, conn)

	if len(record.Connections) == 0 && record.Status != domain.StatusOffline {
		record.Status = domain.StatusOffline
		record.LastSeen = t.now()
		return true
	}
	return false
}

// SetStatus applies an explicit override (e.g. away on one device while
// still connected). The connection-handle set is untouched; the next
// connect/disconnect transition recomputes online/offline as usual.
func (t *Tracker) SetStatus(subjectID string, status domain.PresenceStatus) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record := t.record(subjectID)
	record.Status = status
	record.LastSeen = t.now()
}

// StatusOf answers a presence query. Unknown subjects read as offline now.
func (t *Tracker) StatusOf(subjectID string) (domain.PresenceStatus, time.Time) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, ok := t.records[subjectID]
	if !ok {
		return domain.StatusOffline, t.now()
	}
	return record.Status, record.LastSeen
}

// OnlineCount reports how many subjects currently hold open connections.
func (t *Tracker) OnlineCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	count := 0
	for _, record := range t.records {
		if len(record.Connections) > 0 {
			count++
		}
	}
	return count
}

// record returns the subject's entry, creating it lazily as offline.
// Caller must hold the write lock.
func (t *Tracker) record(subjectID string) *domain.PresenceRecord {
	record, ok := t.records[subjectID]
	if !ok {
		record = &domain.PresenceRecord{
			SubjectID:   subjectID,
			Status:      domain.StatusOffline,
			LastSeen:    t.now(),
			Connections: make(map[domain.ConnectionID]struct{}),
		}
		t.records[subjectID] = record
	}
	return record
}
