package server

import (
	"context"
	"net/http"
	"strings"

	"SampleDeck/core/auth"
)

type contextKey string

const claimsKey contextKey = "claims"

// AuthMiddleware requires a valid bearer token when a JWT secret is
// configured. Websocket clients may pass the token as ?token= instead.
func (h *APIHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(h.jwtSecret) == 0 || r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		token := r.URL.Query().Get("token")
		if authHeader := r.Header.Get("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}
			token = parts[1]
		}
		if token == "" {
			writeError(w, http.StatusUnauthorized, "authorization header is required")
			return
		}

		claims, err := auth.ParseToken(h.jwtSecret, token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the token claims of an authenticated request.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
