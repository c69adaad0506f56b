// ABOUTME: Unit tests for JWT token verification and generation
// ABOUTME: Tests valid tokens, invalid tokens, and expired tokens

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret-key-for-jwt-signing")

func TestJWTVerifier_ValidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	token, err := verifier.Generate("user-123", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	gotID, err := verifier.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", gotID)
}

func TestJWTVerifier_InvalidToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	otherToken, err := NewJWTVerifier([]byte("different-secret")).Generate("user-123", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"garbage token", "not-a-jwt-token"},
		{"malformed JWT", "header.payload.signature"},
		{"wrong secret", otherToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := verifier.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTVerifier_ExpiredToken(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	token, err := verifier.Generate("user-123", -time.Hour)
	require.NoError(t, err)

	_, err = verifier.Verify(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestJWTVerifier_DifferentUsers(t *testing.T) {
	verifier := NewJWTVerifier(testSecret)

	for _, userID := range []string{"user-1", "user-2", "user-3"} {
		token, err := verifier.Generate(userID, time.Hour)
		require.NoError(t, err)

		gotID, err := verifier.Verify(token)
		require.NoError(t, err)
		assert.Equal(t, userID, gotID)
	}
}
