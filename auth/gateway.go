package auth

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"adopt-realtime/domain"
	"adopt-realtime/errors"
)

// Gateway authenticates inbound connections before any event handler can
// run. A failed handshake refuses the connection; there is no soft error
// path at this stage.
type Gateway struct {
	verifier *TokenVerifier
	log      *slog.Logger
}

func NewGateway(verifier *TokenVerifier, log *slog.Logger) *Gateway {
	return &Gateway{verifier: verifier, log: log}
}

// Authenticate extracts the bearer credential from the handshake request
// (the token query parameter first, then the Authorization header) and
// builds the immutable Session for this connection.
func (g *Gateway) Authenticate(r *http.Request) (domain.Session, error) {
	credential := bearerCredential(r)
	if credential == "" {
		g.log.Warn("connection refused, no credential", "remote", r.RemoteAddr)
		return domain.Session{}, errors.ErrMissingCredential
	}

	claims, err := g.verifier.Verify(credential)
	if err != nil {
		g.log.Warn("connection refused", "remote", r.RemoteAddr, "reason", err)
		return domain.Session{}, err
	}

	return domain.Session{
		ConnectionID: domain.ConnectionID(uuid.NewString()),
		SubjectID:    claims.UserID,
		Role:         domain.Role(claims.Role),
		RescueID:     claims.RescueID,
		ConnectedAt:  time.Now().UTC(),
	}, nil
}

func bearerCredential(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if rest, found := strings.CutPrefix(header, "Bearer "); found {
		return rest
	}
	return ""
}
