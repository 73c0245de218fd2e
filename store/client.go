// Package store talks to the conversation backend that owns message and
// participant persistence.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"adopt-realtime/domain"
)

// Client is an HTTP adapter over the conversation backend's internal API.
// Every call is bounded by the configured timeout on top of the caller's
// context.
type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	log     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, log *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		timeout: timeout,
		log:     log,
	}
}

func (c *Client) IsParticipant(ctx context.Context, conversationID, subjectID string) (bool, error) {
	var out struct {
		Participant bool `json:"participant"`
	}
	path := fmt.Sprintf("/internal/conversations/%s/participants/%s",
		url.PathEscape(conversationID), url.PathEscape(subjectID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return false, err
	}
	return out.Participant, nil
}

func (c *Client) MarkMessagesRead(ctx context.Context, conversationID, subjectID string) error {
	path := fmt.Sprintf("/internal/conversations/%s/read", url.PathEscape(conversationID))
	body := map[string]string{"userId": subjectID}
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) AddReaction(ctx context.Context, messageID, subjectID, emoji string) ([]domain.ReactionSummary, error) {
	return c.reaction(ctx, http.MethodPost, messageID, subjectID, emoji)
}

func (c *Client) RemoveReaction(ctx context.Context, messageID, subjectID, emoji string) ([]domain.ReactionSummary, error) {
	return c.reaction(ctx, http.MethodDelete, messageID, subjectID, emoji)
}

func (c *Client) reaction(ctx context.Context, method, messageID, subjectID, emoji string) ([]domain.ReactionSummary, error) {
	var out struct {
		Reactions []domain.ReactionSummary `json:"reactions"`
	}
	path := fmt.Sprintf("/internal/messages/%s/reactions", url.PathEscape(messageID))
	body := map[string]string{"userId": subjectID, "emoji": emoji}
	if err := c.do(ctx, method, path, body, &out); err != nil {
		return nil, err
	}
	return out.Reactions, nil
}

func (c *Client) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) (domain.StoredMessage, error) {
	var out domain.StoredMessage
	path := fmt.Sprintf("/internal/conversations/%s/messages", url.PathEscape(cmd.ChatID))
	if err := c.do(ctx, http.MethodPost, path, cmd, &out); err != nil {
		return domain.StoredMessage{}, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
