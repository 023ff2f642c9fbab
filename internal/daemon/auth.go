package daemon

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"framecast/internal/api"
)

// authMiddleware returns a middleware that validates bearer tokens.
// If token is empty, no authentication is required and all requests pass through.
// Otherwise, requests must include "Authorization: Bearer <token>" header.
func authMiddleware(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		presented, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			writeJSON(w, nil, http.StatusUnauthorized, api.ErrorResponse{
				ErrorKind: "unauthorized",
				Message:   "missing or invalid bearer token",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
