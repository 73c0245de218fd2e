package dispatch

import (
	"context"

	"adopt-realtime/contract"
	"adopt-realtime/domain"
	"adopt-realtime/errors"
)

// Guard confirms conversation membership before any conversation-scoped
// operation runs. It is a pure check: no state changes, and a denial is
// only ever answered to the calling connection.
type Guard struct {
	store contract.ConversationStore
}

func NewGuard(store contract.ConversationStore) *Guard {
	return &Guard{store: store}
}

// RequireMembership asks the Conversation Store whether the session's
// subject participates in the conversation. Store failures surface as
// UpstreamError so the dispatcher can answer without crashing anything.
func (g *Guard) RequireMembership(ctx context.Context, session domain.Session, conversationID string) error {
	ok, err := g.store.IsParticipant(ctx, conversationID, session.SubjectID)
	if err != nil {
		return &errors.UpstreamError{Op: "membership check", Err: err}
	}
	if !ok {
		return errors.ErrAccessDenied
	}
	return nil
}
