package store

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adopt-realtime/domain"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)
	return NewClient(ts.URL, 2*time.Second, slog.New(slog.DiscardHandler))
}

func TestClient_IsParticipant(t *testing.T) {
	req := require.New(t)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodGet, r.Method)
		req.Equal("/internal/conversations/chat-1/participants/alice", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]bool{"participant": true})
	})

	ok, err := client.IsParticipant(context.Background(), "chat-1", "alice")
	req.NoError(err)
	req.True(ok)
}

func TestClient_MarkMessagesRead_Posts_Reader(t *testing.T) {
	req := require.New(t)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/internal/conversations/chat-1/read", r.URL.Path)

		var body map[string]string
		req.NoError(json.NewDecoder(r.Body).Decode(&body))
		req.Equal("alice", body["userId"])
		w.WriteHeader(http.StatusNoContent)
	})

	req.NoError(client.MarkMessagesRead(context.Background(), "chat-1", "alice"))
}

func TestClient_AddReaction_Returns_Aggregate(t *testing.T) {
	req := require.New(t)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal(http.MethodPost, r.Method)
		req.Equal("/internal/messages/m1/reactions", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"reactions": []domain.ReactionSummary{{Emoji: "🐶", Count: 2, Users: []string{"alice", "bob"}}},
		})
	})

	reactions, err := client.AddReaction(context.Background(), "m1", "alice", "🐶")
	req.NoError(err)
	req.Len(reactions, 1)
	req.Equal(2, reactions[0].Count)
}

func TestClient_SendMessage(t *testing.T) {
	req := require.New(t)
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		req.Equal("/internal/conversations/chat-1/messages", r.URL.Path)

		var cmd domain.SendMessageCommand
		req.NoError(json.NewDecoder(r.Body).Decode(&cmd))
		_ = json.NewEncoder(w).Encode(domain.StoredMessage{
			MessageID: "m1",
			ChatID:    cmd.ChatID,
			SenderID:  cmd.SenderID,
			Content:   cmd.Content,
		})
	})

	msg, err := client.SendMessage(context.Background(), domain.SendMessageCommand{
		ChatID:   "chat-1",
		SenderID: "alice",
		Content:  "hello",
	})
	req.NoError(err)
	req.Equal("m1", msg.MessageID)
	req.Equal("hello", msg.Content)
}

func TestClient_Unexpected_Status_Is_An_Error(t *testing.T) {
	req := require.New(t)
	client := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := client.IsParticipant(context.Background(), "chat-1", "alice")
	req.Error(err)
	req.Contains(err.Error(), "500")
}
