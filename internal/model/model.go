// ABOUTME: Core chat entities shared by every component of the client
// ABOUTME: Identity, Peer, Conversation, Message and the channel ConnectionState

package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Identity is the authenticated user, resolved once per session.
type Identity struct {
	ID          string `json:"_id"`
	DisplayName string `json:"fullName"`
	Email       string `json:"email,omitempty"`
}

// Peer is another directory entry that can be started as a chat target.
type Peer struct {
	ID          string `json:"_id"`
	DisplayName string `json:"fullName"`
}

// Participant is a conversation member as embedded by the service.
type Participant struct {
	ID          string `json:"_id"`
	DisplayName string `json:"fullName,omitempty"`
}

// Conversation is a chat thread between two or more participants.
type Conversation struct {
	ID             string        `json:"_id"`
	ParticipantIDs []string      `json:"participantIds"`
	DisplayLabel   string        `json:"chatName,omitempty"`
	Participants   []Participant `json:"participants,omitempty"`
}

// Message is a single chat message as confirmed by the service.
type Message struct {
	ID        string    `json:"_id"`
	ChatID    string    `json:"chatId"`
	SenderID  string    `json:"senderId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ConnectionState is the lifecycle state of the real-time channel.
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

// String returns the lowercase state name.
func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// namedRef accepts the display-name spellings used by the service.
type namedRef struct {
	ID       string `json:"_id"`
	FullName string `json:"fullName"`
	Name     string `json:"name"`
}

func (n namedRef) displayName() string {
	if n.FullName != "" {
		return n.FullName
	}
	return n.Name
}

// UnmarshalJSON accepts both "fullName" and "name".
func (i *Identity) UnmarshalJSON(data []byte) error {
	var raw struct {
		namedRef
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Identity{ID: raw.ID, DisplayName: raw.displayName(), Email: raw.Email}
	return nil
}

// UnmarshalJSON accepts both "fullName" and "name".
func (p *Peer) UnmarshalJSON(data []byte) error {
	var raw namedRef
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Peer{ID: raw.ID, DisplayName: raw.displayName()}
	return nil
}

// UnmarshalJSON accepts a participant as an object or as a bare id string.
func (p *Participant) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*p = Participant{ID: id}
		return nil
	}
	var raw namedRef
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = Participant{ID: raw.ID, DisplayName: raw.displayName()}
	return nil
}

// UnmarshalJSON fills ParticipantIDs from "participants" when the service
// embeds member objects instead of sending "participantIds".
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	var raw plain
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw.ParticipantIDs) == 0 {
		for _, p := range raw.Participants {
			raw.ParticipantIDs = append(raw.ParticipantIDs, p.ID)
		}
	}
	*c = Conversation(raw)
	return nil
}

// LabelFor returns the name shown for the conversation to selfID: the other
// participant's name when known, else the chat name, else the id.
func (c Conversation) LabelFor(selfID string) string {
	for _, p := range c.Participants {
		if p.ID != selfID && p.DisplayName != "" {
			return p.DisplayName
		}
	}
	if c.DisplayLabel != "" {
		return c.DisplayLabel
	}
	var others []string
	for _, id := range c.ParticipantIDs {
		if id != selfID {
			others = append(others, id)
		}
	}
	if len(others) > 0 {
		return strings.Join(others, ", ")
	}
	return c.ID
}

// UnmarshalJSON accepts "senderId" or a "sender" that is either an id
// string or an embedded user object.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	var raw struct {
		plain
		Sender json.RawMessage `json:"sender"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	msg := Message(raw.plain)
	if msg.SenderID == "" && len(raw.Sender) > 0 {
		var id string
		if err := json.Unmarshal(raw.Sender, &id); err == nil {
			msg.SenderID = id
		} else {
			var ref namedRef
			if err := json.Unmarshal(raw.Sender, &ref); err != nil {
				return err
			}
			msg.SenderID = ref.ID
		}
	}
	*m = msg
	return nil
}
