// ABOUTME: Message Dispatch: durable REST write, local append, then channel broadcast
// ABOUTME: Rejects empty drafts and sends without an active conversation

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/2389/tutorchat/internal/api"
	"github.com/2389/tutorchat/internal/model"
)

// Dispatch errors
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoConversation = errors.New("no active conversation")
	ErrSendFailed     = errors.New("send failed")
)

// MessageCreator performs the durable write.
type MessageCreator interface {
	CreateMessage(ctx context.Context, chatID, content string) (*model.Message, error)
}

// ConversationStore is the subset of the conversation store a send touches.
type ConversationStore interface {
	Active() string
	Append(msg model.Message) bool
}

// Broadcaster relays a persisted message on the real-time channel.
type Broadcaster interface {
	Broadcast(chatID string, msg model.Message)
}

// Dispatcher sends messages to the active conversation.
type Dispatcher struct {
	api    MessageCreator
	store  ConversationStore
	relay  Broadcaster
	logger *slog.Logger
}

// New creates a dispatcher. Pass nil logger for default.
func New(creator MessageCreator, store ConversationStore, relay Broadcaster, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		api:    creator,
		store:  store,
		relay:  relay,
		logger: logger.With("component", "dispatch"),
	}
}

// Send writes text to the active conversation. On success the canonical
// message is appended to the store, broadcast and returned. On failure the
// error wraps ErrSendFailed and nothing is committed.
func (d *Dispatcher) Send(ctx context.Context, text string) (model.Message, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return model.Message{}, ErrEmptyMessage
	}
	chatID := d.store.Active()
	if chatID == "" {
		return model.Message{}, ErrNoConversation
	}

	msg, err := d.api.CreateMessage(ctx, chatID, content)
	if err != nil {
		d.logger.Warn("send failed", "chat_id", chatID, "error", err)
		return model.Message{}, fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if msg.ChatID == "" {
		msg.ChatID = chatID
	}

	d.store.Append(*msg)
	d.relay.Broadcast(chatID, *msg)

	d.logger.Debug("message sent", "chat_id", chatID, "message_id", msg.ID)
	return *msg, nil
}

// Reason returns the text shown inline for a failed send: the service's
// message when it sent one, else the error text.
func Reason(err error) string {
	var se *api.StatusError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return err.Error()
}
