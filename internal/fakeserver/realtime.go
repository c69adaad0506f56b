// ABOUTME: Real-time channel of the fake chat service over gorilla/websocket
// ABOUTME: Authenticates the connect frame, tracks rooms and fans messages out to members

package fakeserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/2389/tutorchat/internal/channel"
	"github.com/2389/tutorchat/internal/model"
)

const (
	// peerBufferSize is the outbound frame buffer for each connection.
	peerBufferSize = 64

	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
	maxMessageSize   = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// peer is one authenticated channel connection.
type peer struct {
	id     string
	userID string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		p.conn.Close()
	})
}

// Hub tracks live connections and the rooms they joined.
type Hub struct {
	mu     sync.RWMutex
	peers  map[string]*peer
	rooms  map[string]map[string]*peer // chatID -> peerID -> peer
	logger *slog.Logger
}

// NewHub creates an empty hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		peers:  make(map[string]*peer),
		rooms:  make(map[string]map[string]*peer),
		logger: logger.With("component", "hub"),
	}
}

func (h *Hub) add(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.peers[p.id] = p
}

func (h *Hub) remove(p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.peers, p.id)
	for chatID, members := range h.rooms {
		delete(members, p.id)
		if len(members) == 0 {
			delete(h.rooms, chatID)
		}
	}
}

// join adds the connection to the room of chatID.
func (h *Hub) join(chatID string, p *peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.rooms[chatID]; !ok {
		h.rooms[chatID] = make(map[string]*peer)
	}
	h.rooms[chatID][p.id] = p
}

// Publish sends msg as chat:message:new to every member of the room.
// If excludePeerID is non-empty, that connection is skipped.
// Non-blocking: frames are dropped for members whose buffers are full.
func (h *Hub) Publish(chatID string, msg model.Message, excludePeerID string) {
	frame, err := channel.Encode(channel.EventMessageCreated, msg)
	if err != nil {
		h.logger.Error("encoding message", "error", err)
		return
	}

	h.mu.RLock()
	targets := make([]*peer, 0, len(h.rooms[chatID]))
	for id, p := range h.rooms[chatID] {
		if excludePeerID != "" && id == excludePeerID {
			continue
		}
		targets = append(targets, p)
	}
	h.mu.RUnlock()

	for _, p := range targets {
		select {
		case p.send <- frame:
		case <-p.done:
		default:
			h.logger.Debug("dropped frame for slow peer", "chat_id", chatID, "peer_id", p.id)
		}
	}
}

// DisconnectAll closes every live connection.
func (h *Hub) DisconnectAll() {
	h.mu.RLock()
	peers := make([]*peer, 0, len(h.peers))
	for _, p := range h.peers {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		p.close()
	}
	h.logger.Debug("disconnected all peers", "count", len(peers))
}

// Close disconnects everyone.
func (h *Hub) Close() {
	h.DisconnectAll()
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "error", err)
		return
	}

	p := &peer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, peerBufferSize),
		done: make(chan struct{}),
	}

	userID, ok := s.authenticate(r.Context(), p)
	if !ok {
		p.close()
		return
	}
	p.userID = userID

	s.hub.add(p)
	defer s.hub.remove(p)
	defer p.close()

	go s.writePump(p)
	s.readPump(p)
}

// authenticate reads the connect frame and answers with an ack or a
// connect_error.
func (s *Server) authenticate(ctx context.Context, p *peer) (string, bool) {
	conn := p.conn
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		return "", false
	}
	_ = conn.SetReadDeadline(time.Time{})

	env, err := channel.Decode(data)
	if err != nil || env.Event != channel.EventConnect {
		s.reject(conn, "expected connect")
		return "", false
	}
	s.recordConnect()

	var req channel.ConnectRequest
	if err := json.Unmarshal(env.Data, &req); err != nil {
		s.reject(conn, "invalid connect payload")
		return "", false
	}
	userID, err := s.verifier.Verify(req.Token)
	if err != nil || !s.UserExists(ctx, userID) {
		s.reject(conn, "authentication failed")
		return "", false
	}

	frame, _ := channel.Encode(channel.EventConnect, channel.ConnectAck{SID: p.id})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return "", false
	}
	s.logger.Debug("channel connected", "user_id", userID, "sid", p.id)
	return userID, true
}

func (s *Server) reject(conn *websocket.Conn, reason string) {
	frame, _ := channel.Encode(channel.EventConnectError, channel.ConnectError{Message: reason})
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.TextMessage, frame)
	s.logger.Debug("channel rejected", "reason", reason)
}

func (s *Server) readPump(p *peer) {
	p.conn.SetReadLimit(maxMessageSize)
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := channel.Decode(data)
		if err != nil {
			s.logger.Debug("dropping frame", "error", err)
			continue
		}

		switch env.Event {
		case channel.EventRegister:
			var userID string
			if err := json.Unmarshal(env.Data, &userID); err != nil {
				continue
			}
			if userID != p.userID {
				s.logger.Warn("register for another user", "user_id", userID, "token_user_id", p.userID)
				continue
			}
			s.recordRegister(userID)

		case channel.EventJoin:
			var chatID string
			if err := json.Unmarshal(env.Data, &chatID); err != nil {
				continue
			}
			if !s.isMember(chatID, p.userID) {
				s.logger.Debug("join refused", "chat_id", chatID, "user_id", p.userID)
				continue
			}
			s.hub.join(chatID, p)
			s.recordJoin(p.userID, chatID)

		case channel.EventMessage:
			var relay channel.RelayPayload
			if err := json.Unmarshal(env.Data, &relay); err != nil || relay.ChatID == "" {
				continue
			}
			exclude := p.id
			if s.echo {
				exclude = ""
			}
			s.hub.Publish(relay.ChatID, relay.Message, exclude)

		default:
			s.logger.Debug("unhandled event", "event", env.Event)
		}
	}
}

func (s *Server) writePump(p *peer) {
	for {
		select {
		case frame := <-p.send:
			_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				p.close()
				return
			}
		case <-p.done:
			return
		}
	}
}

func (s *Server) isMember(chatID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[chatID]
	if !ok {
		return false
	}
	return slices.Contains(c.conv.ParticipantIDs, userID)
}
