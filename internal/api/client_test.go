// ABOUTME: Tests for the REST client
// ABOUTME: Covers bearer headers, path building, tolerant decoding and error mapping

package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tutorchat/internal/credential"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *credential.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := credential.NewMemoryStore("test-token")
	return New(srv.URL+"/api/", tokens, 5*time.Second, nil), tokens
}

func TestClient_Me_SendsBearer(t *testing.T) {
	var gotAuth, gotPath string
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"_id":"u1","fullName":"Ada Tutor","email":"ada@example.com"}`))
	})

	identity, err := c.Me(t.Context())
	require.NoError(t, err)

	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "/api/user/me", gotPath)
	assert.Equal(t, "u1", identity.ID)
	assert.Equal(t, "Ada Tutor", identity.DisplayName)
	assert.Equal(t, "ada@example.com", identity.Email)
}

func TestClient_NoCredentialSkipsRequest(t *testing.T) {
	var calls atomic.Int32
	c, tokens := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})
	require.NoError(t, tokens.Clear(t.Context()))

	_, err := c.ListConversations(t.Context())
	assert.ErrorIs(t, err, ErrNoCredential)
	assert.Equal(t, int32(0), calls.Load(), "no request should reach the service")
}

func TestClient_StatusErrorCarriesMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"message":"content too long"}`))
	})

	_, err := c.CreateMessage(t.Context(), "c1", "hello")
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "content too long", se.Message)
	assert.False(t, IsUnauthorized(err))
}

func TestClient_PlainTextErrorBody(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream down", http.StatusBadGateway)
	})

	_, err := c.ListPeers(t.Context())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "upstream down", se.Message)
}

func TestIsUnauthorized(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		})
		_, err := c.Me(t.Context())
		assert.True(t, IsUnauthorized(err), "status %d should be unauthorized", code)
	}

	assert.False(t, IsUnauthorized(errors.New("boom")))
}

func TestClient_Endpoints(t *testing.T) {
	type call struct{ method, path, body string }
	var calls []call

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		calls = append(calls, call{r.Method, r.URL.Path, string(body)})
		w.Header().Set("Content-Type", "application/json")

		switch r.Method + " " + r.URL.Path {
		case "GET /api/user":
			_, _ = w.Write([]byte(`[{"_id":"u2","name":"Ben Student"}]`))
		case "GET /api/chats":
			_, _ = w.Write([]byte(`[{"_id":"c1","participants":[{"_id":"u1","fullName":"Ada"},{"_id":"u2","fullName":"Ben"}]}]`))
		case "POST /api/chats/user/u2":
			_, _ = w.Write([]byte(`{"_id":"c1","participantIds":["u1","u2"]}`))
		case "GET /api/chats/c1/messages":
			_, _ = w.Write([]byte(`[{"_id":"m1","chatId":"c1","sender":{"_id":"u2"},"content":"hi","createdAt":"2025-01-02T03:04:05Z"}]`))
		case "POST /api/chats/c1/messages":
			_, _ = w.Write([]byte(`{"_id":"m2","chatId":"c1","senderId":"u1","content":"hello","createdAt":"2025-01-02T03:04:06Z"}`))
		case "PUT /api/chats/c1/mark-read":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
	ctx := t.Context()

	peers, err := c.ListPeers(ctx)
	require.NoError(t, err)
	require.Len(t, peers, 1)
	assert.Equal(t, "Ben Student", peers[0].DisplayName)

	convs, err := c.ListConversations(ctx)
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, []string{"u1", "u2"}, convs[0].ParticipantIDs)
	assert.Equal(t, "Ben", convs[0].LabelFor("u1"))

	conv, err := c.StartConversation(ctx, "u2")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)

	msgs, err := c.ListMessages(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "u2", msgs[0].SenderID)

	msg, err := c.CreateMessage(ctx, "c1", "hello")
	require.NoError(t, err)
	assert.Equal(t, "m2", msg.ID)
	assert.Equal(t, time.Date(2025, 1, 2, 3, 4, 6, 0, time.UTC), msg.CreatedAt.UTC())

	require.NoError(t, c.MarkRead(ctx, "c1"))

	require.Len(t, calls, 6)
	var sent map[string]string
	require.NoError(t, json.Unmarshal([]byte(calls[4].body), &sent))
	assert.Equal(t, map[string]string{"content": "hello"}, sent)
	assert.Equal(t, "PUT", calls[5].method)
}
