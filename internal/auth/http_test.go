// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation and user lookup

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockUsers map[string]bool

func (m mockUsers) UserExists(_ context.Context, id string) bool { return m[id] }

func TestHTTPAuthMiddleware(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)
	valid, err := verifier.Generate("user-1", time.Hour)
	require.NoError(t, err)
	unknown, err := verifier.Generate("ghost", time.Hour)
	require.NoError(t, err)
	expired, err := verifier.Generate("user-1", -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantUser   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, "user-1"},
		{"missing header", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"empty token", "Bearer ", http.StatusUnauthorized, ""},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, ""},
		{"unknown user", "Bearer " + unknown, http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotUser string
			handler := HTTPAuthMiddleware(mockUsers{"user-1": true}, verifier)(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotUser = UserFromContext(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/user/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantUser, gotUser)
			if tt.wantStatus != http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"message"`)
			}
		})
	}
}
