package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type expiryRecorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *expiryRecorder) record(conversationID, subjectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, conversationID+"/"+subjectID)
}

func (r *expiryRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestStore_Start_Registers_Active_Typer(t *testing.T) {
	req := require.New(t)
	store := NewStore(DefaultExpiry, nil)

	// When a subject starts composing
	store.Start("chat-1", "user-1", "Alice Smith")

	// Then they are listed for that conversation only
	typers := store.ActiveTypers("chat-1")
	req.Len(typers, 1)
	req.Equal("user-1", typers[0].SubjectID)
	req.Equal("Alice Smith", typers[0].DisplayName)
	req.Empty(store.ActiveTypers("chat-2"))
}

func TestStore_Stop_Reports_Presence_Of_Record(t *testing.T) {
	req := require.New(t)
	store := NewStore(DefaultExpiry, nil)
	store.Start("chat-1", "user-1", "Alice")

	// When stopping an existing record
	req.True(store.Stop("chat-1", "user-1"))

	// Then a second stop reports nothing left to remove
	req.False(store.Stop("chat-1", "user-1"))
	req.Empty(store.ActiveTypers("chat-1"))
}

func TestStore_Expiry_Fires_Once_And_Removes(t *testing.T) {
	req := require.New(t)
	recorder := &expiryRecorder{}
	store := NewStore(20*time.Millisecond, recorder.record)

	// Given a composing subject
	store.Start("chat-1", "user-1", "Alice")

	// When the window elapses without a stop
	req.Eventually(func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)

	// Then the record is gone and no further callback fires
	req.Empty(store.ActiveTypers("chat-1"))
	req.Equal([]string{"chat-1/user-1"}, recorder.snapshot())
	req.False(store.Stop("chat-1", "user-1"))
}

func TestStore_Restart_Debounces_Expiry(t *testing.T) {
	req := require.New(t)
	recorder := &expiryRecorder{}
	store := NewStore(50*time.Millisecond, recorder.record)

	// Given a subject who keeps typing
	store.Start("chat-1", "user-1", "Alice")
	time.Sleep(30 * time.Millisecond)
	store.Start("chat-1", "user-1", "Alice")
	time.Sleep(30 * time.Millisecond)

	// Then the original window passing did not expire the record
	req.Empty(recorder.snapshot())
	req.Len(store.ActiveTypers("chat-1"), 1)

	// And the reset window eventually does
	req.Eventually(func() bool {
		return len(recorder.snapshot()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestStore_Stop_Cancels_Expiry_Callback(t *testing.T) {
	req := require.New(t)
	recorder := &expiryRecorder{}
	store := NewStore(20*time.Millisecond, recorder.record)

	// Given a composing subject who stops in time
	store.Start("chat-1", "user-1", "Alice")
	req.True(store.Stop("chat-1", "user-1"))

	// Then no expiry callback ever fires
	time.Sleep(50 * time.Millisecond)
	req.Empty(recorder.snapshot())
}

func TestStore_ClearAllFor_Returns_Affected_Conversations(t *testing.T) {
	req := require.New(t)
	recorder := &expiryRecorder{}
	store := NewStore(time.Minute, recorder.record)

	store.Start("chat-b", "user-1", "Alice")
	store.Start("chat-a", "user-1", "Alice")
	store.Start("chat-a", "user-2", "Bob")

	// When the subject disconnects
	affected := store.ClearAllFor("user-1")

	// Then both conversations are reported, sorted, and only their records
	// are gone
	req.Equal([]string{"chat-a", "chat-b"}, affected)
	req.Empty(store.ActiveTypers("chat-b"))
	typers := store.ActiveTypers("chat-a")
	req.Len(typers, 1)
	req.Equal("user-2", typers[0].SubjectID)

	// And the cancelled timers never call back
	time.Sleep(20 * time.Millisecond)
	req.Empty(recorder.snapshot())
}
