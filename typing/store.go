// Package typing keeps the transient "who is composing where" map with
// automatic expiry.
package typing

import (
	"sort"
	"sync"
	"time"

	"adopt-realtime/domain"
)

// DefaultExpiry is how long a typing indicator survives without a restart.
const DefaultExpiry = 5 * time.Second

// ExpiredFunc is invoked after an indicator expired on its own, so the
// owner can broadcast the stopped-typing event. It runs outside the store's
// lock, on the timer goroutine.
type ExpiredFunc func(conversationID, subjectID string)

type entry struct {
	record domain.TypingRecord
	timer  *time.Timer
}

// Store owns all typing records, keyed by (conversation, subject). Each key
// holds at most one outstanding expiry timer; a repeated start resets that
// timer instead of stacking a second one.
type Store struct {
	mu        sync.Mutex
	expiry    time.Duration
	onExpired ExpiredFunc
	byChat    map[string]map[string]*entry
	now       func() time.Time
}

// NewStore builds a store with the given expiry window; zero or negative
// means DefaultExpiry. onExpired may be nil.
func NewStore(expiry time.Duration, onExpired ExpiredFunc) *Store {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Store{
		expiry:    expiry,
		onExpired: onExpired,
		byChat:    make(map[string]map[string]*entry),
		now:       time.Now,
	}
}

// Start upserts the record with a fresh timestamp and (re)schedules its
// expiry timer.
func (s *Store) Start(conversationID, subjectID, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.byChat[conversationID]
	if !ok {
		chat = make(map[string]*entry)
		s.byChat[conversationID] = chat
	}

	record := domain.TypingRecord{
		SubjectID:   subjectID,
		DisplayName: displayName,
		StartedAt:   s.now(),
	}

	if e, ok := chat[subjectID]; ok {
		e.record = record
		e.timer.Reset(s.expiry)
		return
	}

	chat[subjectID] = &entry{
		record: record,
		timer: time.AfterFunc(s.expiry, func() {
			s.expire(conversationID, subjectID)
		}),
	}
}

// Stop removes the record and cancels its timer. Reports whether a record
// was actually present, so the caller can skip the broadcast otherwise.
func (s *Store) Stop(conversationID, subjectID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(conversationID, subjectID)
}

// ActiveTypers lists who is composing in the conversation. Records past the
// expiry window are ignored even if their timer has not fired yet.
func (s *Store) ActiveTypers(conversationID string) []domain.TypingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	chat, ok := s.byChat[conversationID]
	if !ok {
		return nil
	}
	cutoff := s.now().Add(-s.expiry)
	var typers []domain.TypingRecord
	for _, e := range chat {
		if e.record.StartedAt.After(cutoff) {
			typers = append(typers, e.record)
		}
	}
	return typers
}

// ClearAllFor removes every record owned by the subject across all
// conversations, cancelling the timers. It returns the affected
// conversation ids so the caller can emit stopped-typing to each room.
// Called on disconnect.
func (s *Store) ClearAllFor(subjectID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var affected []string
	for conversationID, chat := range s.byChat {
		if _, ok := chat[subjectID]; ok {
			s.removeLocked(conversationID, subjectID)
			affected = append(affected, conversationID)
		}
	}
	sort.Strings(affected)
	return affected
}

// expire runs on the timer goroutine when a key's window elapsed without a
// stop. A start racing with the firing timer leaves a fresh timestamp
// behind; in that case the record survives and no event is emitted.
func (s *Store) expire(conversationID, subjectID string) {
	s.mu.Lock()
	e, ok := s.byChat[conversationID][subjectID]
	if !ok || e.record.StartedAt.After(s.now().Add(-s.expiry)) {
		s.mu.Unlock()
		return
	}
	s.removeLocked(conversationID, subjectID)
	s.mu.Unlock()

	if s.onExpired != nil {
		s.onExpired(conversationID, subjectID)
	}
}

// removeLocked deletes the key, stops its timer and prunes the empty
// conversation entry. Caller must hold the lock.
func (s *Store) removeLocked(conversationID, subjectID string) bool {
	chat, ok := s.byChat[conversationID]
	if !ok {
		return false
	}
	e, ok := chat[subjectID]
	if !ok {
		return false
	}
	e.timer.Stop()
	delete(chat, subjectID)
	if len(chat) == 0 {
		delete(s.byChat, conversationID)
	}
	return true
}
