// ABOUTME: In-memory chat service state: users, conversations and messages
// ABOUTME: Provides the test hooks used to inject failures and observe clients

package fakeserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/tutorchat/internal/auth"
	"github.com/2389/tutorchat/internal/model"
)

// Options configures a Server.
type Options struct {
	// Secret signs bearer tokens. A random secret is used when empty.
	Secret []byte
	// EchoToSender relays chat:message frames back to the sending connection too.
	EchoToSender bool
	Logger       *slog.Logger
}

type chat struct {
	conv     model.Conversation
	messages []model.Message
	readBy   map[string]time.Time
}

// Server is the fake chat service.
type Server struct {
	verifier *auth.JWTVerifier
	hub      *Hub
	logger   *slog.Logger
	echo     bool

	mu        sync.Mutex
	users     []model.Identity
	chats     map[string]*chat
	chatOrder []string
	failures  map[string]int
	requests  []string
	registers []string
	joins     map[string][]string
	connects  int
	hits      int
}

// New creates an empty service.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	secret := opts.Secret
	if len(secret) == 0 {
		secret = []byte(uuid.NewString())
	}
	logger = logger.With("component", "fakeserver")
	return &Server{
		verifier: auth.NewJWTVerifier(secret),
		hub:      NewHub(logger),
		logger:   logger,
		echo:     opts.EchoToSender,
		chats:    make(map[string]*chat),
		failures: make(map[string]int),
		joins:    make(map[string][]string),
	}
}

// Handler returns the HTTP handler serving /api and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	rest := http.StripPrefix("/api", s.restHandler())
	mux.Handle("/api/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits++
		s.mu.Unlock()
		rest.ServeHTTP(w, r)
	}))
	mux.HandleFunc("GET /ws", s.handleWebsocket)
	return mux
}

// AddUser creates a user and returns its Identity.
func (s *Server) AddUser(name, email string) model.Identity {
	id := model.Identity{ID: uuid.NewString(), DisplayName: name, Email: email}
	s.mu.Lock()
	s.users = append(s.users, id)
	s.mu.Unlock()
	return id
}

// IssueToken returns a bearer token for userID valid for ttl.
func (s *Server) IssueToken(userID string, ttl time.Duration) (string, error) {
	if !s.UserExists(context.Background(), userID) {
		return "", fmt.Errorf("unknown user %q", userID)
	}
	return s.verifier.Generate(userID, ttl)
}

// UserExists reports whether userID is a known user.
func (s *Server) UserExists(_ context.Context, userID string) bool {
	_, ok := s.user(userID)
	return ok
}

// Users returns every user in creation order.
func (s *Server) Users() []model.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.users)
}

// Fail makes route answer status until cleared. Routes are written as
// "METHOD /pattern", for example "GET /user" or "POST /chats/{id}/messages".
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = status
}

// ClearFailures removes every injected failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.failures)
}

// Requests returns the REST routes served so far, in arrival order.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.requests)
}

// Hits returns how many HTTP requests reached /api, authenticated or not.
func (s *Server) Hits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits
}

// Registrations returns the user ids registered on the channel, one entry
// per user:register frame.
func (s *Server) Registrations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.registers)
}

// Joins returns the rooms userID joined, one entry per chat:join frame.
func (s *Server) Joins(userID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.joins[userID])
}

// ConnectAttempts returns how many connect frames the channel received.
func (s *Server) ConnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

// Messages returns the persisted history of chatID.
func (s *Server) Messages(chatID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil
	}
	return slices.Clone(c.messages)
}

// ReadBy reports whether userID acknowledged chatID.
func (s *Server) ReadBy(chatID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return false
	}
	_, ok = c.readBy[userID]
	return ok
}

// CreateChat returns the conversation between a and b, creating it when absent.
func (s *Server) CreateChat(a, b string) (model.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatBetweenLocked(a, b)
}

// InjectMessage persists a message from senderID and pushes it to the room
// as if another client had relayed it.
func (s *Server) InjectMessage(chatID, senderID, content string) (model.Message, error) {
	msg, err := s.createMessage(chatID, senderID, content)
	if err != nil {
		return model.Message{}, err
	}
	s.hub.Publish(chatID, msg, "")
	return msg, nil
}

// PushMessage pushes msg to the room of msg.ChatID without persisting it.
func (s *Server) PushMessage(msg model.Message) {
	s.hub.Publish(msg.ChatID, msg, "")
}

// DisconnectAll drops every live channel connection.
func (s *Server) DisconnectAll() {
	s.hub.DisconnectAll()
}

// Close releases the channel connections.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) user(id string) (model.Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userLocked(id)
}

func (s *Server) userLocked(id string) (model.Identity, bool) {
	for _, u := range s.users {
		if u.ID == id {
			return u, true
		}
	}
	return model.Identity{}, false
}

func (s *Server) chatBetweenLocked(a, b string) (model.Conversation, error) {
	ua, ok := s.userLocked(a)
	if !ok {
		return model.Conversation{}, fmt.Errorf("unknown user %q", a)
	}
	ub, ok := s.userLocked(b)
	if !ok {
		return model.Conversation{}, fmt.Errorf("unknown user %q", b)
	}

	for _, id := range s.chatOrder {
		c := s.chats[id]
		if slices.Contains(c.conv.ParticipantIDs, a) && slices.Contains(c.conv.ParticipantIDs, b) {
			return c.conv, nil
		}
	}

	conv := model.Conversation{
		ID:             uuid.NewString(),
		ParticipantIDs: []string{a, b},
		Participants: []model.Participant{
			{ID: ua.ID, DisplayName: ua.DisplayName},
			{ID: ub.ID, DisplayName: ub.DisplayName},
		},
	}
	s.chats[conv.ID] = &chat{conv: conv, readBy: make(map[string]time.Time)}
	s.chatOrder = append(s.chatOrder, conv.ID)
	s.logger.Debug("chat created", "chat_id", conv.ID)
	return conv, nil
}

func (s *Server) createMessage(chatID, senderID, content string) (model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return model.Message{}, fmt.Errorf("unknown chat %q", chatID)
	}
	msg := model.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		SenderID:  senderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	c.messages = append(c.messages, msg)
	return msg, nil
}

func (s *Server) recordRegister(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registers = append(s.registers, userID)
}

func (s *Server) recordJoin(userID, chatID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.joins[userID] = append(s.joins[userID], chatID)
}

func (s *Server) recordConnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
}
