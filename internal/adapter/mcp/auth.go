package mcp

import (
	"net/http"
	"strings"
)

// AuthMiddleware validates the Authorization header against a shared API key.
// Both "Bearer <key>" and a bare key are accepted. An empty apiKey disables
// authentication and the handler is returned unchanged.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			http.Error(w, "missing authorization header", http.StatusUnauthorized)
			return
		}

		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found {
			token = auth
		}
		if token != apiKey {
			http.Error(w, "invalid credentials", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}
