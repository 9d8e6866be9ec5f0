package membership

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/covault/covault/pkg/orgs"
)

// InviteTokenIssuer mints and verifies the signed tokens embedded in
// organization invite emails
type InviteTokenIssuer struct {
	key      []byte
	lifetime time.Duration
}

// NewInviteTokenIssuer creates an issuer signing with the given key.
// Tokens expire after lifetime; zero means the five day default.
func NewInviteTokenIssuer(key []byte, lifetime time.Duration) *InviteTokenIssuer {
	if lifetime <= 0 {
		lifetime = 5 * 24 * time.Hour
	}
	return &InviteTokenIssuer{key: key, lifetime: lifetime}
}

type inviteClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issue signs an invite token bound to the invited member row and email
func (i *InviteTokenIssuer) Issue(orgUserID uuid.UUID, email string) (string, error) {
	now := time.Now().UTC()
	claims := inviteClaims{
		Email: strings.ToLower(email),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   orgUserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.lifetime)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", fmt.Errorf("failed to sign invite token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and confirms it was issued
// for the given member row and email
func (i *InviteTokenIssuer) Verify(tokenString string, orgUserID uuid.UUID, email string) error {
	var claims inviteClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.key, nil
	})
	if err != nil {
		return orgs.NewBadRequestError("Invalid token.")
	}
	if claims.Subject != orgUserID.String() || !strings.EqualFold(claims.Email, email) {
		return orgs.NewBadRequestError("Invalid token.")
	}
	return nil
}
