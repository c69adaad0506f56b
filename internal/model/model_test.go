// ABOUTME: Tests for tolerant decoding of service entities
// ABOUTME: Verifies name spellings, participant shapes, sender shapes and LabelFor

package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentity_NameSpellings(t *testing.T) {
	var a, b Identity
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"u1","fullName":"Ada Lovelace","email":"ada@example.com"}`), &a))
	require.NoError(t, json.Unmarshal([]byte(`{"_id":"u1","name":"Ada"}`), &b))

	assert.Equal(t, Identity{ID: "u1", DisplayName: "Ada Lovelace", Email: "ada@example.com"}, a)
	assert.Equal(t, "Ada", b.DisplayName)
}

func TestConversation_ParticipantShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want []string
	}{
		{"explicit ids", `{"_id":"c1","participantIds":["u1","u2"]}`, []string{"u1", "u2"}},
		{"embedded objects", `{"_id":"c1","participants":[{"_id":"u1","fullName":"Ada"},{"_id":"u2"}]}`, []string{"u1", "u2"}},
		{"bare id strings", `{"_id":"c1","participants":["u1","u2"]}`, []string{"u1", "u2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Conversation
			require.NoError(t, json.Unmarshal([]byte(tt.body), &c))
			assert.Equal(t, "c1", c.ID)
			assert.Equal(t, tt.want, c.ParticipantIDs)
		})
	}
}

func TestMessage_SenderShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"sender id field", `{"_id":"m1","chatId":"c1","senderId":"u1","content":"hi"}`},
		{"sender string", `{"_id":"m1","chatId":"c1","sender":"u1","content":"hi"}`},
		{"sender object", `{"_id":"m1","chatId":"c1","sender":{"_id":"u1","fullName":"Ada"},"content":"hi"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Message
			require.NoError(t, json.Unmarshal([]byte(tt.body), &m))
			assert.Equal(t, "m1", m.ID)
			assert.Equal(t, "c1", m.ChatID)
			assert.Equal(t, "u1", m.SenderID)
			assert.Equal(t, "hi", m.Content)
		})
	}
}

func TestConversation_LabelFor(t *testing.T) {
	withNames := Conversation{
		ID:             "c1",
		ParticipantIDs: []string{"u1", "u2"},
		DisplayLabel:   "Algebra",
		Participants:   []Participant{{ID: "u1", DisplayName: "Ada"}, {ID: "u2", DisplayName: "Grace"}},
	}
	assert.Equal(t, "Grace", withNames.LabelFor("u1"))
	assert.Equal(t, "Ada", withNames.LabelFor("u2"))

	labelOnly := Conversation{ID: "c2", ParticipantIDs: []string{"u1", "u2"}, DisplayLabel: "Algebra"}
	assert.Equal(t, "Algebra", labelOnly.LabelFor("u1"))

	idsOnly := Conversation{ID: "c3", ParticipantIDs: []string{"u1", "u2"}}
	assert.Equal(t, "u2", idsOnly.LabelFor("u1"))

	assert.Equal(t, "c4", Conversation{ID: "c4"}.LabelFor("u1"))
}

func TestConnectionState_String(t *testing.T) {
	assert.Equal(t, "disconnected", Disconnected.String())
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "connected", Connected.String())
	assert.Equal(t, "unknown", ConnectionState(42).String())
}
