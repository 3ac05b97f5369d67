package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tagworks/tagworks-api/internal/api/shared"
	"github.com/tagworks/tagworks-api/internal/queue"
)

// IdentityVerifier checks a bearer token against an expected audience and
// returns the service account it identifies.
type IdentityVerifier interface {
	Verify(tokenString, audience string) (string, error)
}

// IdentityMiddleware authenticates requests with the signed identity
// tokens used throughout the system: clients and the work queue both
// present a token whose audience is the route they are calling.
type IdentityMiddleware struct {
	verifier IdentityVerifier
}

// NewIdentityMiddleware creates a new IdentityMiddleware.
func NewIdentityMiddleware(verifier IdentityVerifier) *IdentityMiddleware {
	return &IdentityMiddleware{verifier: verifier}
}

// RequireIdentity validates the bearer token for the given audience and
// adds the caller's service account to the request context.
func (m *IdentityMiddleware) RequireIdentity(audience string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
				return
			}

			serviceAccount, err := m.verifier.Verify(parts[1], audience)
			if err != nil {
				if errors.Is(err, queue.ErrExpiredToken) {
					shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
					return
				}
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := shared.WithServiceAccount(r.Context(), serviceAccount)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
