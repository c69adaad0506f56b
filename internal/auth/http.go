// ABOUTME: HTTP middleware for bearer authentication on chat API endpoints
// ABOUTME: Extracts the JWT from the Authorization header and adds the user to context

package auth

import (
	"context"
	"net/http"
	"strings"
)

// UserLookup reports whether a user id is known.
type UserLookup interface {
	UserExists(ctx context.Context, userID string) bool
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware rejects requests without a valid bearer token for a
// known user, and adds the user id to the request context.
func HTTPAuthMiddleware(users UserLookup, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				writeError(w, http.StatusUnauthorized, errMsg)
				return
			}

			userID, err := verifier.Verify(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			if !users.UserExists(r.Context(), userID) {
				writeError(w, http.StatusUnauthorized, "user not found")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), userID)))
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"message":"` + msg + `"}`))
}
