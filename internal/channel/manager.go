// ABOUTME: Channel Manager owning the single websocket connection per Identity
// ABOUTME: Handles handshake, registration, room joins, relay, keep-alive and reconnect

package channel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gorilla/websocket"

	"github.com/2389/tutorchat/internal/config"
	"github.com/2389/tutorchat/internal/model"
)

const (
	// sendBufferSize bounds the outbound queue of one connection.
	sendBufferSize = 64

	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024

	defaultHandshakeTimeout = 10 * time.Second
)

// ErrAuthRejected means the service refused the credential. It is never retried.
var ErrAuthRejected = errors.New("channel credential rejected")

// TokenSource supplies the bearer credential for the connect frame.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Manager owns the real-time connection. All state transitions happen here;
// other components observe them through State and OnStateChange.
type Manager struct {
	cfg    config.ChannelConfig
	tokens TokenSource
	dialer *websocket.Dialer
	logger *slog.Logger

	mu         sync.Mutex
	state      model.ConnectionState
	identityID string
	room       string
	live       *connection
	cancel     context.CancelFunc
	done       chan struct{}
	stateSubs  []func(model.ConnectionState)
	msgSubs    []func(model.Message)
}

// connection is one live websocket, its outbound queue and the rooms
// joined on it.
type connection struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	mu     sync.Mutex
	joined map[string]bool
}

func (c *connection) markJoined(chatID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined[chatID] = true
}

func (c *connection) hasJoined(chatID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined[chatID]
}

// NewManager creates a manager in the Disconnected state. Pass nil logger for default.
func NewManager(cfg config.ChannelConfig, tokens TokenSource, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	return &Manager{
		cfg:    cfg,
		tokens: tokens,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		logger: logger.With("component", "channel"),
	}
}

// State returns the current connection state.
func (m *Manager) State() model.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange registers fn to run on every state transition.
func (m *Manager) OnStateChange(fn func(model.ConnectionState)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stateSubs = append(m.stateSubs, fn)
}

// OnMessage registers fn to receive message-created events for rooms joined
// on the current connection. Messages are forwarded as received; duplicates
// are not filtered here.
func (m *Manager) OnMessage(fn func(model.Message)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgSubs = append(m.msgSubs, fn)
}

// Acquire starts the connection for identity. It returns immediately; the
// handshake and any reconnects run in the background. Acquiring the
// Identity whose connection is still running is a no-op; a different
// Identity replaces it. After the reconnect budget is spent the run ends,
// and the next Acquire starts a fresh one and re-joins the remembered room.
func (m *Manager) Acquire(ctx context.Context, identity model.Identity) {
	m.mu.Lock()
	if m.cancel != nil && m.identityID == identity.ID {
		m.mu.Unlock()
		return
	}
	prevCancel, prevDone := m.cancel, m.done
	if m.identityID != identity.ID {
		m.room = ""
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	m.identityID = identity.ID
	m.cancel = cancel
	m.done = done
	m.mu.Unlock()

	if prevCancel != nil {
		prevCancel()
		<-prevDone
		m.logger.Info("channel replaced")
	}

	m.logger.Info("acquiring channel", "identity_id", identity.ID, "url", m.cfg.URL)
	go m.run(runCtx, cancel, identity.ID, done)
}

// Running reports whether a connection run is active for an Identity. It is
// false before Acquire, after Release and once the reconnect budget is spent.
func (m *Manager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancel != nil
}

// Release tears the connection down and waits for it to close. The
// remembered room is forgotten.
func (m *Manager) Release() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.identityID = ""
	m.room = ""
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	m.logger.Info("channel released")
}

// detach forgets a run that ended on its own. A run already replaced or
// released is left alone.
func (m *Manager) detach(done chan struct{}, cancel context.CancelFunc) {
	m.mu.Lock()
	if m.done == done {
		m.cancel, m.done = nil, nil
	}
	m.mu.Unlock()
	cancel()
}

// JoinRoom subscribes the connection to chatID. The room is remembered and
// joined again after every reconnect; while disconnected the frame itself
// is dropped.
func (m *Manager) JoinRoom(chatID string) {
	m.mu.Lock()
	m.room = chatID
	live := m.live
	m.mu.Unlock()

	if live == nil {
		m.logger.Debug("join deferred until connected", "chat_id", chatID)
		return
	}
	m.join(live, chatID)
}

// Broadcast relays a persisted message to the other members of chatID.
// Dropped when no connection is live.
func (m *Manager) Broadcast(chatID string, msg model.Message) {
	m.mu.Lock()
	live := m.live
	m.mu.Unlock()

	if live == nil {
		m.logger.Debug("broadcast dropped while disconnected", "chat_id", chatID, "message_id", msg.ID)
		return
	}
	m.enqueue(live, EventMessage, RelayPayload{ChatID: chatID, Message: msg})
}

// run connects, serves and reconnects until ctx is cancelled or the
// reconnect budget is spent.
func (m *Manager) run(ctx context.Context, cancel context.CancelFunc, identityID string, done chan struct{}) {
	defer close(done)
	defer m.detach(done, cancel)
	defer m.setState(model.Disconnected)

	for {
		conn, err := m.connectWithRetry(ctx)
		if err != nil {
			if ctx.Err() == nil {
				m.logger.Warn("channel unavailable", "error", err)
			}
			return
		}

		m.serve(ctx, conn, identityID)

		if ctx.Err() != nil {
			return
		}
		m.setState(model.Disconnected)
		if !m.cfg.Reconnect.Enabled {
			m.logger.Warn("channel lost, reconnect disabled")
			return
		}
		m.logger.Info("channel lost, reconnecting")
	}
}

func (m *Manager) connectWithRetry(ctx context.Context) (*websocket.Conn, error) {
	bo := backoff.NewExponentialBackOff()
	if m.cfg.Reconnect.InitialInterval > 0 {
		bo.InitialInterval = m.cfg.Reconnect.InitialInterval
	}
	if m.cfg.Reconnect.MaxInterval > 0 {
		bo.MaxInterval = m.cfg.Reconnect.MaxInterval
	}

	tries := m.cfg.Reconnect.MaxAttempts
	if !m.cfg.Reconnect.Enabled || tries == 0 {
		tries = 1
	}

	op := func() (*websocket.Conn, error) {
		m.setState(model.Connecting)
		conn, err := m.connect(ctx)
		if err != nil {
			m.setState(model.Disconnected)
			if errors.Is(err, ErrAuthRejected) {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		return conn, nil
	}

	return backoff.Retry(ctx, op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(tries),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			m.logger.Info("channel connect failed, retrying", "error", err, "retry_in", next)
		}),
	)
}

// connect dials, sends the connect frame and waits for the acknowledgement.
func (m *Manager) connect(ctx context.Context) (*websocket.Conn, error) {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthRejected, err)
	}

	hctx, cancel := context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
	defer cancel()

	conn, resp, err := m.dialer.DialContext(hctx, m.cfg.URL, nil)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: status %d", ErrAuthRejected, resp.StatusCode)
		}
		return nil, fmt.Errorf("dialing %s: %w", m.cfg.URL, err)
	}

	stop := context.AfterFunc(hctx, func() { conn.Close() })
	sid, err := handshake(hctx, conn, token)
	if !stop() {
		// the handshake context expired and the conn was closed under us
		if err == nil {
			err = hctx.Err()
		}
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	m.logger.Debug("channel handshake complete", "sid", sid)
	return conn, nil
}

func handshake(ctx context.Context, conn *websocket.Conn, token string) (string, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
		_ = conn.SetReadDeadline(deadline)
	}

	frame, err := Encode(EventConnect, ConnectRequest{Token: token})
	if err != nil {
		return "", err
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return "", fmt.Errorf("sending connect: %w", err)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return "", fmt.Errorf("awaiting connect ack: %w", err)
		}
		env, err := Decode(data)
		if err != nil {
			continue
		}
		switch env.Event {
		case EventConnect:
			var ack ConnectAck
			_ = decodeData(env, &ack)
			_ = conn.SetWriteDeadline(time.Time{})
			_ = conn.SetReadDeadline(time.Time{})
			return ack.SID, nil
		case EventConnectError:
			var rej ConnectError
			_ = decodeData(env, &rej)
			return "", fmt.Errorf("%w: %s", ErrAuthRejected, rej.Message)
		}
	}
}

// serve runs one live connection until it drops or ctx is cancelled.
func (m *Manager) serve(ctx context.Context, conn *websocket.Conn, identityID string) {
	live := &connection{
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		joined: make(map[string]bool),
	}

	m.mu.Lock()
	m.live = live
	room := m.room
	m.mu.Unlock()

	// register and re-join are queued before the reader starts, so every
	// delivery on this connection follows registration
	m.enqueue(live, EventRegister, identityID)
	if room != "" {
		m.join(live, room)
	}
	m.setState(model.Connected)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		m.writePump(ctx, live)
	}()

	m.readPump(live)

	m.mu.Lock()
	if m.live == live {
		m.live = nil
	}
	m.mu.Unlock()

	close(live.done)
	<-writerDone
	conn.Close()
}

func (m *Manager) readPump(live *connection) {
	conn := live.conn
	conn.SetReadLimit(maxMessageSize)
	if wait := m.pongWait(); wait > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(wait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wait))
		})
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				m.logger.Info("channel read failed", "error", err)
			} else {
				m.logger.Debug("channel closed", "error", err)
			}
			return
		}
		if wait := m.pongWait(); wait > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(wait))
		}

		ev, err := ParseEvent(data)
		if err != nil {
			m.logger.Debug("dropping inbound frame", "error", err)
			continue
		}
		switch ev := ev.(type) {
		case MessageCreated:
			if !live.hasJoined(ev.Message.ChatID) {
				m.logger.Debug("dropping message for room not joined on this connection",
					"chat_id", ev.Message.ChatID, "message_id", ev.Message.ID)
				continue
			}
			m.deliver(ev.Message)
		}
	}
}

func (m *Manager) writePump(ctx context.Context, live *connection) {
	conn := live.conn

	var ping <-chan time.Time
	if m.cfg.PingInterval > 0 {
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case frame := <-live.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				m.logger.Debug("channel write failed", "error", err)
				conn.Close()
				return
			}
		case <-ping:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				m.logger.Debug("channel ping failed", "error", err)
				conn.Close()
				return
			}
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			conn.Close()
			return
		case <-live.done:
			return
		}
	}
}

func (m *Manager) pongWait() time.Duration {
	if m.cfg.PingInterval <= 0 {
		return 0
	}
	return 2 * m.cfg.PingInterval
}

func (m *Manager) join(live *connection, chatID string) {
	live.markJoined(chatID)
	m.enqueue(live, EventJoin, chatID)
}

// enqueue queues an outbound frame without blocking the caller.
func (m *Manager) enqueue(live *connection, event string, data any) {
	frame, err := Encode(event, data)
	if err != nil {
		m.logger.Error("encoding outbound frame", "event", event, "error", err)
		return
	}
	select {
	case <-live.done:
		m.logger.Debug("outbound frame dropped, connection closed", "event", event)
	case live.send <- frame:
	default:
		m.logger.Warn("outbound queue full, frame dropped", "event", event)
	}
}

func (m *Manager) deliver(msg model.Message) {
	m.mu.Lock()
	subs := append([]func(model.Message){}, m.msgSubs...)
	m.mu.Unlock()

	for _, fn := range subs {
		fn(msg)
	}
}

func (m *Manager) setState(state model.ConnectionState) {
	m.mu.Lock()
	if m.state == state {
		m.mu.Unlock()
		return
	}
	m.state = state
	subs := append([]func(model.ConnectionState){}, m.stateSubs...)
	m.mu.Unlock()

	m.logger.Debug("channel state", "state", state.String())
	for _, fn := range subs {
		fn(state)
	}
}
