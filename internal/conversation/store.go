// ABOUTME: Conversation Store: the active conversation's messages and the visible conversation list
// ABOUTME: Select loads history with a stale-fetch guard; Append deduplicates by message id

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/2389/tutorchat/internal/model"
)

// ErrHistoryUnavailable wraps a failed history fetch. The sequence is left
// empty; callers may show it inline or ignore it.
var ErrHistoryUnavailable = errors.New("message history unavailable")

// API is the subset of the REST client the store needs.
type API interface {
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	MarkRead(ctx context.Context, chatID string) error
	StartConversation(ctx context.Context, peerID string) (*model.Conversation, error)
}

// RoomJoiner asks the real-time channel to join a conversation room.
type RoomJoiner interface {
	JoinRoom(chatID string)
}

// Store is the in-memory model of the selected conversation.
type Store struct {
	api    API
	rooms  RoomJoiner
	logger *slog.Logger

	mu         sync.Mutex
	active     string
	generation uint64
	loading    bool
	seq        *Sequence
	convs      []model.Conversation
	appendSubs []func(model.Message)
}

// New creates an empty store with no active conversation. Pass nil logger for default.
func New(api API, rooms RoomJoiner, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		api:    api,
		rooms:  rooms,
		logger: logger.With("component", "conversation"),
		seq:    NewSequence(),
	}
}

// OnAppend registers fn to run for every message that enters the sequence
// through Append.
func (s *Store) OnAppend(fn func(model.Message)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendSubs = append(s.appendSubs, fn)
}

// Select makes chatID the active conversation and loads its history.
// A failed fetch returns an error wrapping ErrHistoryUnavailable and leaves
// the sequence empty; the room is joined either way. If another Select
// starts before the fetch returns, this result is discarded and nil is
// returned.
func (s *Store) Select(ctx context.Context, chatID string) error {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.active = chatID
	s.loading = true
	s.seq.Reset()
	s.mu.Unlock()

	history, fetchErr := s.api.ListMessages(ctx, chatID)

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		s.logger.Debug("discarding stale history", "chat_id", chatID)
		return nil
	}
	s.loading = false
	if fetchErr != nil {
		s.seq.Reset()
	} else {
		merged := NewSequence()
		for _, m := range history {
			if m.ChatID != "" && m.ChatID != chatID {
				continue
			}
			merged.Append(m)
		}
		// live messages that arrived while the fetch was in flight
		for _, m := range s.seq.Messages() {
			merged.Append(m)
		}
		s.seq = merged
	}
	count := s.seq.Len()
	s.mu.Unlock()

	s.rooms.JoinRoom(chatID)

	if fetchErr != nil {
		s.logger.Warn("history unavailable", "chat_id", chatID, "error", fetchErr)
		return fmt.Errorf("%w: %w", ErrHistoryUnavailable, fetchErr)
	}
	s.logger.Debug("conversation selected", "chat_id", chatID, "messages", count)

	if err := s.api.MarkRead(ctx, chatID); err != nil {
		s.logger.Info("mark read failed", "chat_id", chatID, "error", err)
	}
	return nil
}

// Append adds msg to the end of the active sequence. It is a no-op when the
// id is already present or msg belongs to another conversation. Returns
// whether the message was added.
func (s *Store) Append(msg model.Message) bool {
	s.mu.Lock()
	if s.active == "" || msg.ChatID != s.active {
		s.mu.Unlock()
		s.logger.Debug("ignoring message for inactive conversation", "chat_id", msg.ChatID, "message_id", msg.ID)
		return false
	}
	if !s.seq.Append(msg) {
		s.mu.Unlock()
		s.logger.Debug("duplicate message ignored", "message_id", msg.ID)
		return false
	}
	subs := append([]func(model.Message){}, s.appendSubs...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
	return true
}

// StartConversation looks up or creates the conversation with peerID, adds
// it to the visible list when absent and selects it. History failures are
// reported like Select's; the conversation is still returned.
func (s *Store) StartConversation(ctx context.Context, peerID string) (model.Conversation, error) {
	conv, err := s.api.StartConversation(ctx, peerID)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("starting conversation with %s: %w", peerID, err)
	}

	s.mu.Lock()
	if !slices.ContainsFunc(s.convs, func(c model.Conversation) bool { return c.ID == conv.ID }) {
		s.convs = append(s.convs, *conv)
	}
	s.mu.Unlock()

	return *conv, s.Select(ctx, conv.ID)
}

// SetConversations replaces the visible conversation list. Duplicate ids
// keep their first occurrence.
func (s *Store) SetConversations(convs []model.Conversation) {
	seen := make(map[string]bool, len(convs))
	list := make([]model.Conversation, 0, len(convs))
	for _, c := range convs {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		list = append(list, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.convs = list
}

// Conversations returns the visible conversation list.
func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.convs)
}

// Conversation returns the visible conversation with chatID.
func (s *Store) Conversation(chatID string) (model.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.convs {
		if c.ID == chatID {
			return c, true
		}
	}
	return model.Conversation{}, false
}

// Messages returns the active sequence in order.
func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq.Messages()
}

// Active returns the active conversation id, or "" before the first Select.
func (s *Store) Active() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Loading reports whether the active conversation's history is being fetched.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Reset forgets the active conversation and the visible list.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.active = ""
	s.loading = false
	s.seq.Reset()
	s.convs = nil
}
