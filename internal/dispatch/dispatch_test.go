// ABOUTME: Tests for Message Dispatch and the draft Composer
// ABOUTME: Covers validation, commit order on success, no commit on failure and draft handling

package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/tutorchat/internal/api"
	"github.com/2389/tutorchat/internal/model"
)

type recorder struct {
	events []string
}

type mockCreator struct {
	rec     *recorder
	err     error
	content string
	chatID  string
}

func (m *mockCreator) CreateMessage(_ context.Context, chatID, content string) (*model.Message, error) {
	m.rec.events = append(m.rec.events, "create")
	m.chatID, m.content = chatID, content
	if m.err != nil {
		return nil, m.err
	}
	return &model.Message{ID: "m1", ChatID: chatID, SenderID: "u1", Content: content, CreatedAt: time.Now()}, nil
}

type mockStore struct {
	rec      *recorder
	active   string
	appended []model.Message
}

func (m *mockStore) Active() string { return m.active }

func (m *mockStore) Append(msg model.Message) bool {
	m.rec.events = append(m.rec.events, "append")
	m.appended = append(m.appended, msg)
	return true
}

type mockRelay struct {
	rec  *recorder
	sent []model.Message
}

func (m *mockRelay) Broadcast(_ string, msg model.Message) {
	m.rec.events = append(m.rec.events, "broadcast")
	m.sent = append(m.sent, msg)
}

func newTestDispatcher(active string) (*Dispatcher, *mockCreator, *mockStore, *mockRelay, *recorder) {
	rec := &recorder{}
	creator := &mockCreator{rec: rec}
	store := &mockStore{rec: rec, active: active}
	relay := &mockRelay{rec: rec}
	return New(creator, store, relay, nil), creator, store, relay, rec
}

func TestSend_Success(t *testing.T) {
	d, creator, store, relay, rec := newTestDispatcher("c1")

	msg, err := d.Send(t.Context(), "  hello  ")
	require.NoError(t, err)

	assert.Equal(t, "hello", creator.content, "content is sent trimmed")
	assert.Equal(t, "c1", creator.chatID)
	assert.Equal(t, []string{"create", "append", "broadcast"}, rec.events)
	require.Len(t, store.appended, 1)
	require.Len(t, relay.sent, 1)
	assert.Equal(t, msg, store.appended[0])
	assert.Equal(t, msg, relay.sent[0], "the canonical server message is relayed")
}

func TestSend_RejectsEmpty(t *testing.T) {
	d, _, _, _, rec := newTestDispatcher("c1")

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := d.Send(t.Context(), text)
		assert.ErrorIs(t, err, ErrEmptyMessage)
	}
	assert.Empty(t, rec.events)
}

func TestSend_RequiresActiveConversation(t *testing.T) {
	d, _, _, _, rec := newTestDispatcher("")

	_, err := d.Send(t.Context(), "hello")
	assert.ErrorIs(t, err, ErrNoConversation)
	assert.Empty(t, rec.events)
}

func TestSend_FailureCommitsNothing(t *testing.T) {
	d, creator, store, relay, rec := newTestDispatcher("c1")
	creator.err = &api.StatusError{Method: "POST", Path: "/chats/c1/messages", StatusCode: 500, Message: "database down"}

	_, err := d.Send(t.Context(), "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSendFailed)

	var se *api.StatusError
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, "database down", Reason(err))

	assert.Equal(t, []string{"create"}, rec.events)
	assert.Empty(t, store.appended)
	assert.Empty(t, relay.sent)
}

func TestReason_FallsBackToErrorText(t *testing.T) {
	err := errors.New("connection refused")
	assert.Equal(t, "connection refused", Reason(err))
}

func TestComposer(t *testing.T) {
	d, creator, _, _, _ := newTestDispatcher("c1")
	c := NewComposer(d)

	c.SetDraft("hello")
	msg, err := c.Submit(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Empty(t, c.Draft())
	assert.NoError(t, c.Err())

	creator.err = errors.New("offline")
	c.SetDraft("keep me")
	_, err = c.Submit(t.Context())
	assert.ErrorIs(t, err, ErrSendFailed)
	assert.Equal(t, "keep me", c.Draft(), "draft survives a failed send")
	assert.ErrorIs(t, c.Err(), ErrSendFailed)

	c.SetDraft("keep me, edited")
	assert.NoError(t, c.Err(), "editing clears the inline error")
}

func TestComposer_EmptyDraftIsIgnored(t *testing.T) {
	d, _, _, _, rec := newTestDispatcher("c1")
	c := NewComposer(d)

	c.SetDraft("   ")
	_, err := c.Submit(t.Context())
	assert.NoError(t, err)
	assert.NoError(t, c.Err())
	assert.Empty(t, rec.events)
}
