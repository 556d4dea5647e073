// Package relay implements the stream relay: it accepts registered
// streamer, viewer and multi-viewer connections, routes binary frames from
// each streamer to the viewers bound to the same stream id, and
// periodically announces the active-stream set to multi-viewers.
package relay

import (
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/teslashibe/go-telecam/pkg/protocol"
)

// DefaultBroadcastInterval is how often the active-stream set is announced
// to multi-viewers, on top of the announcements on streamer join/leave.
const DefaultBroadcastInterval = 2 * time.Second

// Config configures a relay Server.
type Config struct {
	BroadcastInterval time.Duration
	Logger            *slog.Logger
}

// streamState is the routing table entry for one stream id.
type streamState struct {
	producer *client
	viewers  map[*client]struct{}
}

// Server is the relay.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	app     *fiber.App
	metrics *collector

	mu           sync.RWMutex
	streams      map[string]*streamState
	multiViewers map[*client]struct{}

	done     chan struct{}
	stopOnce sync.Once
}

// NewServer creates a relay server. Call Listen or Serve to start it.
func NewServer(cfg Config) *Server {
	if cfg.BroadcastInterval <= 0 {
		cfg.BroadcastInterval = DefaultBroadcastInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:          cfg,
		logger:       logger,
		metrics:      newCollector(),
		streams:      make(map[string]*streamState),
		multiViewers: make(map[*client]struct{}),
		done:         make(chan struct{}),
	}

	app := fiber.New(fiber.Config{
		AppName:               "telecam relay",
		DisableStartupMessage: true,
	})

	// Latency probe target; body content is irrelevant, only RTT matters.
	app.Get("/ping", func(c *fiber.Ctx) error {
		return c.SendString("pong")
	})

	app.Get("/metrics", adaptor.HTTPHandler(
		promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))

	app.Get("/api/streams", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"streams": s.ActiveStreams()})
	})

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	s.app = app
	return s
}

// Listen serves on the given address until Shutdown.
func (s *Server) Listen(addr string) error {
	go s.broadcastLoop()
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown. Used by tests.
func (s *Server) Serve(ln net.Listener) error {
	go s.broadcastLoop()
	return s.app.Listener(ln)
}

// Shutdown stops the broadcast loop and the HTTP server.
func (s *Server) Shutdown() error {
	s.stopOnce.Do(func() { close(s.done) })
	return s.app.Shutdown()
}

// ActiveStreams returns the sorted ids that currently have a streamer.
func (s *Server) ActiveStreams() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeStreamsLocked()
}

func (s *Server) activeStreamsLocked() []string {
	ids := make([]string, 0, len(s.streams))
	for id, st := range s.streams {
		if st.producer != nil {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// handleWS runs for the lifetime of one websocket connection.
func (s *Server) handleWS(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadLimit(maxMessageSize)

	// The first message must be a register; everything else is a
	// protocol violation and the connection is dropped.
	conn.SetReadDeadline(time.Now().Add(registerWait))
	msgType, data, err := conn.ReadMessage()
	if err != nil || msgType != websocket.TextMessage {
		return
	}
	reg, err := protocol.Parse(data)
	if err != nil || reg.Type != protocol.TypeRegister || !protocol.ValidRole(reg.Role) || reg.StreamID == "" {
		s.logger.Warn("rejecting connection with bad registration", "error", err)
		return
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	c := newClient(uuid.NewString(), reg.Role, reg.StreamID, conn)
	if !s.addClient(c) {
		return
	}
	go c.writePump()

	s.logger.Info("client registered",
		"id", c.id, "role", c.role, "stream", c.streamID)

	s.readLoop(c)
	s.removeClient(c)
	s.logger.Info("client disconnected", "id", c.id, "role", c.role)
}

// addClient registers a client into the routing table. A second streamer
// for an already-produced stream id is rejected.
func (s *Server) addClient(c *client) bool {
	s.mu.Lock()

	switch c.role {
	case protocol.RoleMultiViewer:
		s.multiViewers[c] = struct{}{}
	case protocol.RoleStreamer:
		st := s.ensureStreamLocked(c.streamID)
		if st.producer != nil {
			s.mu.Unlock()
			s.logger.Warn("rejecting duplicate streamer", "stream", c.streamID)
			return false
		}
		st.producer = c
	case protocol.RoleViewer:
		st := s.ensureStreamLocked(c.streamID)
		st.viewers[c] = struct{}{}
	}

	s.metrics.clientsConnected.Inc()
	s.metrics.streamsActive.Set(float64(len(s.activeStreamsLocked())))
	streamerChanged := c.role == protocol.RoleStreamer
	s.mu.Unlock()

	if streamerChanged {
		s.broadcastActiveStreams()
	} else if c.role == protocol.RoleMultiViewer {
		// A fresh multi-viewer gets the current set immediately instead
		// of waiting out the broadcast interval.
		s.sendActiveStreams(c)
	}
	return true
}

func (s *Server) ensureStreamLocked(id string) *streamState {
	st, ok := s.streams[id]
	if !ok {
		st = &streamState{viewers: make(map[*client]struct{})}
		s.streams[id] = st
	}
	return st
}

func (s *Server) removeClient(c *client) {
	s.mu.Lock()

	removed := false
	switch c.role {
	case protocol.RoleMultiViewer:
		if _, ok := s.multiViewers[c]; ok {
			delete(s.multiViewers, c)
			removed = true
		}
	case protocol.RoleStreamer:
		if st, ok := s.streams[c.streamID]; ok && st.producer == c {
			st.producer = nil
			s.dropStreamIfEmptyLocked(c.streamID)
			removed = true
		}
	case protocol.RoleViewer:
		if st, ok := s.streams[c.streamID]; ok {
			if _, in := st.viewers[c]; in {
				delete(st.viewers, c)
				s.dropStreamIfEmptyLocked(c.streamID)
				removed = true
			}
		}
	}

	if removed {
		close(c.send)
		s.metrics.clientsConnected.Dec()
	}
	s.metrics.streamsActive.Set(float64(len(s.activeStreamsLocked())))
	streamerChanged := removed && c.role == protocol.RoleStreamer
	s.mu.Unlock()

	if streamerChanged {
		s.broadcastActiveStreams()
	}
}

func (s *Server) dropStreamIfEmptyLocked(id string) {
	if st, ok := s.streams[id]; ok && st.producer == nil && len(st.viewers) == 0 {
		delete(s.streams, id)
	}
}

// readLoop consumes inbound messages from one client until the connection
// drops. Streamer binary frames are routed; control messages with unknown
// types are ignored, malformed ones logged and dropped.
func (s *Server) readLoop(c *client) {
	for {
		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if c.role == protocol.RoleStreamer {
				s.routeFrame(c, data)
			}
		case websocket.TextMessage:
			if _, err := protocol.Parse(data); err != nil {
				s.logger.Warn("dropping malformed control message",
					"id", c.id, "error", err)
			}
			// Nothing besides register is expected from clients today;
			// unknown types pass without error.
		}
	}
}

// routeFrame fans one frame out to every viewer of the streamer's id.
// Viewers that cannot keep up are dropped, not backlogged.
func (s *Server) routeFrame(from *client, frame []byte) {
	s.mu.RLock()
	st, ok := s.streams[from.streamID]
	if !ok {
		s.mu.RUnlock()
		return
	}
	var slow []*client
	for v := range st.viewers {
		if !v.enqueue(outbound{msgType: websocket.BinaryMessage, data: frame}) {
			slow = append(slow, v)
		}
	}
	viewerCount := len(st.viewers) - len(slow)
	s.mu.RUnlock()

	if viewerCount > 0 {
		s.metrics.framesRelayed.Add(float64(viewerCount))
		s.metrics.bytesRelayed.Add(float64(viewerCount * len(frame)))
	}
	for _, v := range slow {
		s.logger.Warn("dropping slow viewer", "id", v.id, "stream", v.streamID)
		s.metrics.clientsDropped.Inc()
		s.removeClient(v)
		v.conn.Close()
	}
}

// broadcastLoop announces the active-stream set at a fixed cadence so
// multi-viewers converge even if a join/leave announcement was lost.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(s.cfg.BroadcastInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.broadcastActiveStreams()
		}
	}
}

func (s *Server) broadcastActiveStreams() {
	msg := protocol.NewActiveStreams(s.ActiveStreams())
	data, err := msg.Bytes()
	if err != nil {
		return
	}

	// Enqueue under the read lock: removeClient closes send channels
	// under the write lock, so a queued client is never a closed one.
	s.mu.RLock()
	for mv := range s.multiViewers {
		mv.enqueue(outbound{msgType: websocket.TextMessage, data: data})
	}
	s.mu.RUnlock()
}

func (s *Server) sendActiveStreams(c *client) {
	msg := protocol.NewActiveStreams(s.ActiveStreams())
	data, err := msg.Bytes()
	if err != nil {
		return
	}
	c.enqueue(outbound{msgType: websocket.TextMessage, data: data})
}
