package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/klawrenceboxx/postergenius2025-sub000/internal/domain"
	"github.com/klawrenceboxx/postergenius2025-sub000/pkg/guestid"
)

const guestAudience = "guest-session"

// GuestTokens signs and verifies the guest session cookie. The token binds a
// client-generated guest ID so that merges never trust a client-supplied value.
type GuestTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewGuestTokens(secret string, ttl time.Duration) *GuestTokens {
	return &GuestTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (g *GuestTokens) TTL() time.Duration {
	return g.ttl
}

// Sign issues a token for guestID. Malformed IDs are rejected with
// domain.ErrInvalidGuestSession.
func (g *GuestTokens) Sign(guestID string) (string, error) {
	if !guestid.Valid(guestID) {
		return "", domain.ErrInvalidGuestSession
	}

	now := g.now()
	claims := jwt.RegisteredClaims{
		Subject:   guestID,
		Audience:  jwt.ClaimStrings{guestAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("sign guest token: %w", err)
	}
	return signed, nil
}

// Verify returns the guest ID bound to token. Any failure, including an
// expired token or a subject that is not a guest ID, is reported as
// domain.ErrInvalidGuestSession.
func (g *GuestTokens) Verify(token string) (string, error) {
	claims, err := parseHS256(token, g.secret, jwt.WithAudience(guestAudience), jwt.WithTimeFunc(g.now))
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidGuestSession, err)
	}
	if !guestid.Valid(claims.Subject) {
		return "", domain.ErrInvalidGuestSession
	}
	return claims.Subject, nil
}
