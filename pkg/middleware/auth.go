package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/covault/covault/pkg/httputil"
)

type contextKey string

const (
	identityKey  contextKey = "identity"
	principalKey contextKey = "principal"
)

// Identity is the authenticated caller extracted from the access token
type Identity struct {
	UserID uuid.UUID
	Email  string
}

// TokenVerifier validates HS256 access tokens
type TokenVerifier struct {
	key []byte
}

// NewTokenVerifier creates a verifier for the given signing key
func NewTokenVerifier(key []byte) *TokenVerifier {
	return &TokenVerifier{key: key}
}

type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verify checks the token signature and expiry and returns the caller
func (v *TokenVerifier) Verify(token string) (*Identity, error) {
	var claims accessClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("invalid token subject: %w", err)
	}
	return &Identity{UserID: userID, Email: claims.Email}, nil
}

// Issue signs an access token for the given user. Used by tests and the
// local development login endpoint.
func (v *TokenVerifier) Issue(userID uuid.UUID, email string, lifetime time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := accessClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.key)
}

// AuthMiddleware authenticates requests with a bearer token
type AuthMiddleware struct {
	verifier *TokenVerifier
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(verifier *TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// Handler wraps an HTTP handler with bearer token authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}
		identity, err := m.verifier.Verify(parts[1])
		if err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), identityKey, identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFrom extracts the authenticated caller from the request, or nil
func IdentityFrom(r *http.Request) *Identity {
	identity, _ := r.Context().Value(identityKey).(*Identity)
	return identity
}
