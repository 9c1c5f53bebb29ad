package middleware

import (
	"context"
	"net/http"
	"strings"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/evora/mediagen-back/internal/session"
)

type contextKey string

const identityContextKey contextKey = "session_identity"

// Session resolves the caller's bearer token through the session provider
// and injects the resulting identity into the request context. Requests
// outside /v1/ pass through unauthenticated.
func Session(provider session.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, "/v1/") {
				next.ServeHTTP(w, r)
				return
			}

			authorization := r.Header.Get("Authorization")
			const prefix = "Bearer "
			if !strings.HasPrefix(authorization, prefix) {
				writeUnauthorized(w, r)
				return
			}
			token := strings.TrimSpace(strings.TrimPrefix(authorization, prefix))

			identity, err := provider.Resolve(r.Context(), token)
			if err != nil {
				writeUnauthorized(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFrom returns the identity the session middleware resolved.
func IdentityFrom(ctx context.Context) (session.Context, bool) {
	identity, ok := ctx.Value(identityContextKey).(session.Context)
	return identity, ok
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(
		`{"error":{"code":"unauthorized","message":"session token required"},"request_id":"` +
			chimiddleware.GetReqID(r.Context()) + `"}`))
}
