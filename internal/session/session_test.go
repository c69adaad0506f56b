// ABOUTME: Tests for the Session Resolver and Session lifecycle
// ABOUTME: Covers resolve success, AuthExpired paths, hooks and logout

package session

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tutorchat/internal/api"
	"github.com/2389/tutorchat/internal/credential"
	"github.com/2389/tutorchat/internal/model"
)

type mockFetcher struct {
	identity *model.Identity
	err      error
	calls    int
}

func (m *mockFetcher) Me(context.Context) (*model.Identity, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	id := *m.identity
	return &id, nil
}

func newTestSession(fetcher *mockFetcher, token string) (*Session, *credential.MemoryStore) {
	creds := credential.NewMemoryStore(token)
	return New(NewResolver(fetcher, creds, nil), creds, nil), creds
}

func TestResolve_Success(t *testing.T) {
	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1", DisplayName: "Ada"}}
	creds := credential.NewMemoryStore("opaque-token")

	identity, err := NewResolver(fetcher, creds, nil).Resolve(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, 1, fetcher.calls)

	token, err := creds.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", token, "credential must survive a successful resolve")
}

func TestResolve_Unauthorized(t *testing.T) {
	fetcher := &mockFetcher{err: &api.StatusError{Method: "GET", Path: "/user/me", StatusCode: 401}}
	creds := credential.NewMemoryStore("stale")

	_, err := NewResolver(fetcher, creds, nil).Resolve(t.Context())
	assert.ErrorIs(t, err, ErrAuthExpired)

	_, err = creds.Token(t.Context())
	assert.ErrorIs(t, err, credential.ErrNotFound, "credential should be cleared")
}

func TestResolve_TransportFailureAlsoExpires(t *testing.T) {
	fetcher := &mockFetcher{err: errors.New("connection refused")}
	creds := credential.NewMemoryStore("token")

	_, err := NewResolver(fetcher, creds, nil).Resolve(t.Context())
	assert.ErrorIs(t, err, ErrAuthExpired)

	_, err = creds.Token(t.Context())
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestResolve_CancelledKeepsCredential(t *testing.T) {
	fetcher := &mockFetcher{err: fmt.Errorf("GET /user/me: %w", context.Canceled)}
	creds := credential.NewMemoryStore("token")

	_, err := NewResolver(fetcher, creds, nil).Resolve(t.Context())
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrAuthExpired)

	token, err := creds.Token(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "token", token)
}

func TestResolve_MissingCredentialSkipsRequest(t *testing.T) {
	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1"}}

	_, err := NewResolver(fetcher, credential.NewMemoryStore(""), nil).Resolve(t.Context())
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 0, fetcher.calls)
}

func TestResolve_ExpiredJWTSkipsRequest(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "u1",
		"exp": time.Now().Add(-time.Hour).Unix(),
	}).SignedString([]byte("session-test-secret"))
	require.NoError(t, err)

	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1"}}
	creds := credential.NewMemoryStore(token)

	_, err = NewResolver(fetcher, creds, nil).Resolve(t.Context())
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 0, fetcher.calls)

	_, err = creds.Token(t.Context())
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestSession_InitPublishesIdentity(t *testing.T) {
	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1", DisplayName: "Ada"}}
	s, _ := newTestSession(fetcher, "token")

	var published []*model.Identity
	s.OnIdentity(func(id *model.Identity) { published = append(published, id) })

	_, ok := s.Identity()
	assert.False(t, ok)

	identity, err := s.Init(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", identity.ID)

	got, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, identity, got)

	// A second mount re-checks but does not re-publish the same identity
	_, err = s.Init(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
	require.Len(t, published, 1)
	assert.Equal(t, "u1", published[0].ID)
}

func TestSession_InitFailureSignalsSignIn(t *testing.T) {
	fetcher := &mockFetcher{err: &api.StatusError{StatusCode: 401}}
	s, _ := newTestSession(fetcher, "token")

	signIns := 0
	s.OnSignInRequired(func() { signIns++ })

	_, err := s.Init(t.Context())
	assert.ErrorIs(t, err, ErrAuthExpired)
	assert.Equal(t, 1, signIns)

	_, err = s.MustIdentity()
	assert.ErrorIs(t, err, ErrNoIdentity)
}

func TestSession_InitCancelledKeepsIdentity(t *testing.T) {
	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1"}}
	s, _ := newTestSession(fetcher, "token")
	_, err := s.Init(t.Context())
	require.NoError(t, err)

	var published []*model.Identity
	s.OnIdentity(func(id *model.Identity) { published = append(published, id) })
	signIns := 0
	s.OnSignInRequired(func() { signIns++ })

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	fetcher.err = ctx.Err()

	_, err = s.Init(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, signIns)
	assert.Empty(t, published)

	got, ok := s.Identity()
	require.True(t, ok)
	assert.Equal(t, "u1", got.ID)
}

func TestSession_LogoutClearsEverything(t *testing.T) {
	fetcher := &mockFetcher{identity: &model.Identity{ID: "u1"}}
	s, creds := newTestSession(fetcher, "token")

	var cleared bool
	s.OnIdentity(func(id *model.Identity) {
		if id == nil {
			cleared = true
		}
	})
	signIns := 0
	s.OnSignInRequired(func() { signIns++ })

	_, err := s.Init(t.Context())
	require.NoError(t, err)

	require.NoError(t, s.Logout(t.Context()))

	_, ok := s.Identity()
	assert.False(t, ok)
	assert.True(t, cleared)
	assert.Equal(t, 1, signIns)

	_, err = creds.Token(t.Context())
	assert.ErrorIs(t, err, credential.ErrNotFound)
}
