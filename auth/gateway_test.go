package auth

import (
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"adopt-realtime/domain"
	"adopt-realtime/errors"
)

func testGateway() *Gateway {
	return NewGateway(NewTokenVerifier(testSecret), slog.New(slog.DiscardHandler))
}

func TestGateway_Token_Query_Parameter(t *testing.T) {
	req := require.New(t)
	gateway := testGateway()
	token, err := GenerateToken(testSecret, "user-1", "adopter", "", time.Minute)
	req.NoError(err)

	// Given a handshake carrying the token as a query parameter
	request := httptest.NewRequest("GET", "/ws?token="+token, nil)

	// When authenticating
	session, err := gateway.Authenticate(request)

	// Then a fresh session is built for the claims
	req.NoError(err)
	req.Equal("user-1", session.SubjectID)
	req.Equal(domain.RoleAdopter, session.Role)
	req.NotEmpty(session.ConnectionID)
	req.False(session.ConnectedAt.IsZero())
}

func TestGateway_Authorization_Header(t *testing.T) {
	req := require.New(t)
	gateway := testGateway()
	token, err := GenerateToken(testSecret, "staff-1", "rescue_staff", "rescue-9", time.Minute)
	req.NoError(err)

	request := httptest.NewRequest("GET", "/ws", nil)
	request.Header.Set("Authorization", "Bearer "+token)

	session, err := gateway.Authenticate(request)
	req.NoError(err)
	req.Equal("staff-1", session.SubjectID)
	req.Equal(domain.RoleRescueStaff, session.Role)
	req.Equal("rescue-9", session.RescueID)
}

func TestGateway_Missing_Credential(t *testing.T) {
	req := require.New(t)
	gateway := testGateway()

	request := httptest.NewRequest("GET", "/ws", nil)

	_, err := gateway.Authenticate(request)
	req.ErrorIs(err, errors.ErrMissingCredential)
	req.True(errors.IsAuthError(err))
}

func TestGateway_Expired_Credential(t *testing.T) {
	req := require.New(t)
	gateway := testGateway()
	token, err := GenerateToken(testSecret, "user-1", "adopter", "", -time.Minute)
	req.NoError(err)

	request := httptest.NewRequest("GET", "/ws?token="+token, nil)

	_, err = gateway.Authenticate(request)
	req.ErrorIs(err, errors.ErrExpiredCredential)
}

func TestGateway_Unique_Connection_IDs(t *testing.T) {
	req := require.New(t)
	gateway := testGateway()
	token, err := GenerateToken(testSecret, "user-1", "adopter", "", time.Minute)
	req.NoError(err)

	// When the same subject connects twice
	first, err := gateway.Authenticate(httptest.NewRequest("GET", "/ws?token="+token, nil))
	req.NoError(err)
	second, err := gateway.Authenticate(httptest.NewRequest("GET", "/ws?token="+token, nil))
	req.NoError(err)

	// Then each connection gets its own identity
	req.NotEqual(first.ConnectionID, second.ConnectionID)
}
