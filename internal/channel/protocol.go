// ABOUTME: Wire protocol for the real-time channel: JSON envelopes with named events
// ABOUTME: Inbound frames are parsed at the boundary into the closed Event variant

package channel

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/2389/tutorchat/internal/model"
)

// Event names carried in Envelope.Event.
const (
	EventConnect        = "connect"
	EventConnectError   = "connect_error"
	EventRegister       = "user:register"
	EventJoin           = "chat:join"
	EventMessage        = "chat:message"
	EventMessageCreated = "chat:message:new"
)

var (
	// ErrMalformedFrame means the frame is not a valid envelope.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrUnknownEvent means the envelope names an event the client does not handle.
	ErrUnknownEvent = errors.New("unknown event")
)

// Envelope is the JSON frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnectRequest authenticates a new connection.
type ConnectRequest struct {
	Token string `json:"token"`
}

// ConnectAck acknowledges a connection.
type ConnectAck struct {
	SID string `json:"sid"`
}

// ConnectError rejects a connection.
type ConnectError struct {
	Message string `json:"message"`
}

// RelayPayload is the data of a chat:message frame.
type RelayPayload struct {
	ChatID  string        `json:"chatId"`
	Message model.Message `json:"message"`
}

// Encode builds a frame for event with data marshaled as JSON.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Decode parses a frame into its envelope.
func Decode(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	}
	if env.Event == "" {
		return Envelope{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return env, nil
}

// Event is an inbound server event the client acts on.
type Event interface {
	eventName() string
}

// MessageCreated reports a message persisted in a room the client joined.
type MessageCreated struct {
	Message model.Message
}

func (MessageCreated) eventName() string { return EventMessageCreated }

// ParseEvent converts an inbound frame into an Event. Frames that are not
// envelopes return ErrMalformedFrame; events other than the handled ones
// return ErrUnknownEvent.
func ParseEvent(frame []byte) (Event, error) {
	env, err := Decode(frame)
	if err != nil {
		return nil, err
	}

	switch env.Event {
	case EventMessageCreated:
		var msg model.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrMalformedFrame, env.Event, err)
		}
		if msg.ID == "" || msg.ChatID == "" {
			return nil, fmt.Errorf("%w: %s without id or chatId", ErrMalformedFrame, env.Event)
		}
		return MessageCreated{Message: msg}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
}

func decodeData(env Envelope, v any) error {
	if len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, v)
}
