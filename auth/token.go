package auth

import (
	stderrors "errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"adopt-realtime/errors"
)

// Claims defines the identity data carried inside the bearer token issued
// by the marketplace's auth service. This layer only verifies; issuance
// lives elsewhere.
type Claims struct {
	UserID   string `json:"userId"`
	Role     string `json:"role"`
	RescueID string `json:"rescueId,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks signature and expiry against the shared secret.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify parses the token string and returns its claims. Expiry is
// distinguished from other failures so the gateway can refuse with the
// precise reason.
func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.ErrInvalidCredential
		}
		return v.secret, nil
	})
	if err != nil {
		if stderrors.Is(err, jwt.ErrTokenExpired) {
			return nil, errors.ErrExpiredCredential
		}
		return nil, errors.ErrInvalidCredential
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, errors.ErrInvalidCredential
	}
	return claims, nil
}

// GenerateToken creates a signed token. Kept for tests and local tooling;
// production issuance belongs to the auth service.
func GenerateToken(secret, userID, role, rescueID string, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:   userID,
		Role:     role,
		RescueID: rescueID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "adopt-realtime",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}
