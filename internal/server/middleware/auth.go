// Package middleware provides HTTP middleware for the editor login gate.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const sessionKey ContextKey = "session"

// Session is what an authenticated request carries in its context.
type Session struct {
	Subject  string
	IssuedAt time.Time
}

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Session, error)
}

// AuthMiddleware rejects requests without a valid bearer token and stores
// the session in the request context.
func AuthMiddleware(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			session, err := validator.ValidateToken(token)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// bearerToken extracts the token from a case-insensitive "Bearer <token>" header.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], parts[1] != ""
}

// GetSession returns the authenticated session from the request context.
func GetSession(r *http.Request) (*Session, error) {
	session, ok := r.Context().Value(sessionKey).(*Session)
	if !ok || session == nil {
		return nil, fmt.Errorf("session not found in request context")
	}
	return session, nil
}
