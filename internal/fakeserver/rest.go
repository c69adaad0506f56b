// ABOUTME: REST endpoints of the fake chat service, mounted under /api
// ABOUTME: Bearer-authenticated JSON handlers with per-route failure injection

package fakeserver

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/2389/tutorchat/internal/auth"
	"github.com/2389/tutorchat/internal/model"
)

// Route names used by Fail.
const (
	RouteMe            = "GET /user/me"
	RoutePeers         = "GET /user"
	RouteChats         = "GET /chats"
	RouteStartChat     = "POST /chats/user/{peerId}"
	RouteMessages      = "GET /chats/{id}/messages"
	RouteCreateMessage = "POST /chats/{id}/messages"
	RouteMarkRead      = "PUT /chats/{id}/mark-read"
)

func (s *Server) restHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /user/me", s.route(RouteMe, s.handleMe))
	mux.Handle("GET /user", s.route(RoutePeers, s.handlePeers))
	mux.Handle("GET /chats", s.route(RouteChats, s.handleChats))
	mux.Handle("GET /chats/{id}/messages", s.route(RouteMessages, s.handleMessages))
	mux.Handle("PUT /chats/{id}/mark-read", s.route(RouteMarkRead, s.handleMarkRead))
	// POST /chats/user/{peerId} and POST /chats/{id}/messages overlap as
	// mux patterns, so one handler dispatches both
	mux.HandleFunc("POST /chats/{a}/{b}", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.PathValue("a") == "user":
			s.route(RouteStartChat, s.handleStartChat).ServeHTTP(w, r)
		case r.PathValue("b") == "messages":
			s.route(RouteCreateMessage, s.handleCreateMessage).ServeHTTP(w, r)
		default:
			writeJSONError(w, http.StatusNotFound, "not found")
		}
	})
	return auth.HTTPAuthMiddleware(s, s.verifier)(mux)
}

// route records the request and applies any injected failure.
func (s *Server) route(name string, h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, name)
		status, failing := s.failures[name]
		s.mu.Unlock()

		if failing {
			s.logger.Debug("injected failure", "route", name, "status", status)
			writeJSONError(w, status, http.StatusText(status))
			return
		}
		h(w, r)
	})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	me, ok := s.user(auth.UserFromContext(r.Context()))
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	self := auth.UserFromContext(r.Context())
	peers := []model.Peer{}
	for _, u := range s.Users() {
		if u.ID != self {
			peers = append(peers, model.Peer{ID: u.ID, DisplayName: u.DisplayName})
		}
	}
	writeJSON(w, http.StatusOK, peers)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	self := auth.UserFromContext(r.Context())

	s.mu.Lock()
	convs := []model.Conversation{}
	for _, id := range s.chatOrder {
		if c := s.chats[id]; slices.Contains(c.conv.ParticipantIDs, self) {
			convs = append(convs, c.conv)
		}
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleStartChat(w http.ResponseWriter, r *http.Request) {
	self := auth.UserFromContext(r.Context())
	peerID := r.PathValue("b")
	if peerID == self {
		writeJSONError(w, http.StatusBadRequest, "cannot start a chat with yourself")
		return
	}

	conv, err := s.CreateChat(self, peerID)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	c, ok := s.memberChat(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	s.mu.Lock()
	msgs := slices.Clone(c.messages)
	s.mu.Unlock()

	if msgs == nil {
		msgs = []model.Message{}
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	chatID := r.PathValue("a")
	if _, ok := s.memberChat(w, r, chatID); !ok {
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeJSONError(w, http.StatusBadRequest, "content is required")
		return
	}

	msg, err := s.createMessage(chatID, auth.UserFromContext(r.Context()), req.Content)
	if err != nil {
		writeJSONError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	c, ok := s.memberChat(w, r, r.PathValue("id"))
	if !ok {
		return
	}
	s.mu.Lock()
	c.readBy[auth.UserFromContext(r.Context())] = time.Now()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// memberChat looks up chatID and checks the caller participates in it.
// It writes the error response itself when the lookup fails.
func (s *Server) memberChat(w http.ResponseWriter, r *http.Request, chatID string) (*chat, bool) {
	self := auth.UserFromContext(r.Context())

	s.mu.Lock()
	c, ok := s.chats[chatID]
	member := ok && slices.Contains(c.conv.ParticipantIDs, self)
	s.mu.Unlock()

	switch {
	case !ok:
		writeJSONError(w, http.StatusNotFound, "chat not found")
		return nil, false
	case !member:
		writeJSONError(w, http.StatusForbidden, "not a participant")
		return nil, false
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
