package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// BearerTokenAuth guards the MCP HTTP endpoint with a static bearer token
type BearerTokenAuth struct {
	token string
}

// NewBearerTokenAuth creates a new Bearer token authenticator
func NewBearerTokenAuth(token string) *BearerTokenAuth {
	return &BearerTokenAuth{token: token}
}

// IsAuthorized validates the Bearer token from the Authorization header
func (b *BearerTokenAuth) IsAuthorized(r *http.Request) bool {
	const bearerPrefix = "Bearer "

	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return false
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" || b.token == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(b.token)) == 1
}

// Middleware rejects unauthorized requests before they reach next
func (b *BearerTokenAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !b.IsAuthorized(r) {
			w.Header().Set("WWW-Authenticate", "Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
