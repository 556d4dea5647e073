// Package session owns one logical WebSocket connection to the relay.
//
// A Session outlives its socket: when the socket drops it reconnects after
// a fixed delay, indefinitely, re-sending the registration handshake on
// every new connection. There is no backoff growth and no retry limit;
// a robot link wants the stream back as soon as the network allows.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-telecam/pkg/protocol"
)

const (
	// DefaultReconnectDelay is the fixed delay between reconnect attempts.
	DefaultReconnectDelay = 3 * time.Second

	// handshakeTimeout bounds the initial dial.
	handshakeTimeout = 10 * time.Second

	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pingPeriod is how often keepalive pings go out on an open socket.
	pingPeriod = 30 * time.Second

	// maxMessageSize caps inbound messages. Full HD JPEG frames stay well
	// under this.
	maxMessageSize = 4 * 1024 * 1024
)

// ErrClosed is returned by operations on an explicitly closed session.
var ErrClosed = errors.New("session closed")

// Config configures a Session. URL, Role and StreamID are required; the
// stream id is immutable for the session's lifetime.
type Config struct {
	URL      string
	Role     protocol.Role
	StreamID string

	// ReconnectDelay overrides DefaultReconnectDelay when > 0.
	ReconnectDelay time.Duration

	Logger *slog.Logger

	// OnBinary receives each binary frame payload, in socket-arrival
	// order. Called from the session's read goroutine.
	OnBinary func(payload []byte)

	// OnControl receives each parsed control message. Malformed control
	// messages are logged and dropped before this is called.
	OnControl func(msg *protocol.Message)

	// OnState observes state transitions for display. Notification only;
	// not part of the protocol.
	OnState func(s State)
}

// Session is one logical connection to the relay.
type Session struct {
	cfg    Config
	logger *slog.Logger
	dialer *websocket.Dialer

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
	done  chan struct{}

	// Only one goroutine may write to a gorilla conn at a time.
	writeMu sync.Mutex
}

// Open creates the session and starts connecting in the background.
// It does not wait for the connection to come up.
func Open(cfg Config) (*Session, error) {
	if cfg.URL == "" {
		return nil, errors.New("session: URL is required")
	}
	if !protocol.ValidRole(cfg.Role) {
		return nil, fmt.Errorf("session: invalid role %q", cfg.Role)
	}
	if cfg.StreamID == "" {
		return nil, errors.New("session: stream id is required")
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultReconnectDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		cfg:    cfg,
		logger: logger.With("role", cfg.Role, "stream", cfg.StreamID),
		dialer: &websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		state:  StateConnecting,
		done:   make(chan struct{}),
	}

	go s.run()
	return s, nil
}

// Role returns the session's role.
func (s *Session) Role() protocol.Role { return s.cfg.Role }

// StreamID returns the session's stream id.
func (s *Session) StreamID() string { return s.cfg.StreamID }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connected reports whether the socket is up and registration has been
// sent. Frame transmission is allowed only in this state.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen || s.state == StateRegistered
}

// SendBinary transmits one frame payload. Returns false without error when
// the session is not connected: stale frames are dropped, never queued.
func (s *Session) SendBinary(payload []byte) bool {
	s.mu.Lock()
	conn := s.conn
	ok := s.state == StateOpen || s.state == StateRegistered
	s.mu.Unlock()
	if !ok || conn == nil {
		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.BinaryMessage, payload); err != nil {
		s.logger.Debug("frame send failed", "error", err)
		return false
	}
	return true
}

// SendControl transmits a control message as a text frame.
func (s *Session) SendControl(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close tears the session down: the pending reconnect timer is cancelled,
// the socket is closed, and no further reconnect is attempted.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	conn := s.conn
	s.conn = nil
	close(s.done)
	cb := s.cfg.OnState
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cb != nil {
		cb(StateClosed)
	}
	return nil
}

func (s *Session) run() {
	for {
		if s.isDone() {
			return
		}
		s.setState(StateConnecting)

		conn, _, err := s.dialer.Dial(s.cfg.URL, nil)
		if err != nil {
			s.logger.Warn("connect failed", "error", err)
			if !s.awaitReconnect() {
				return
			}
			continue
		}

		s.mu.Lock()
		if s.state == StateClosed {
			s.mu.Unlock()
			conn.Close()
			return
		}
		s.conn = conn
		s.mu.Unlock()

		s.setState(StateOpen)
		s.register()
		s.setState(StateRegistered)

		pingDone := make(chan struct{})
		go s.pingLoop(conn, pingDone)
		s.readPump(conn)
		close(pingDone)

		s.mu.Lock()
		s.conn = nil
		closed := s.state == StateClosed
		s.mu.Unlock()
		conn.Close()
		if closed {
			return
		}

		s.logger.Info("disconnected, reconnecting", "delay", s.cfg.ReconnectDelay)
		s.setState(StateReconnecting)
		if !s.awaitReconnect() {
			return
		}
	}
}

// register sends the handshake. Fire-and-forget: frame loss during the
// brief unregistered window is tolerated, not corrected.
func (s *Session) register() {
	msg := protocol.NewRegister(s.cfg.Role, s.cfg.StreamID)
	if err := s.SendControl(msg); err != nil {
		s.logger.Warn("register send failed", "error", err)
	}
}

func (s *Session) readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if s.cfg.OnBinary != nil {
				s.cfg.OnBinary(data)
			}
		case websocket.TextMessage:
			msg, err := protocol.Parse(data)
			if err != nil {
				s.logger.Warn("dropping malformed control message", "error", err)
				continue
			}
			if s.cfg.OnControl != nil {
				s.cfg.OnControl(msg)
			}
		}
	}
}

func (s *Session) pingLoop(conn *websocket.Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		case <-stop:
			return
		case <-s.done:
			return
		}
	}
}

// awaitReconnect sleeps for the fixed delay. Returns false when the session
// was closed while waiting; the timer is stopped either way.
func (s *Session) awaitReconnect() bool {
	t := time.NewTimer(s.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = next
	cb := s.cfg.OnState
	s.mu.Unlock()

	if cb != nil {
		cb(next)
	}
}
