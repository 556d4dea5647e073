// Package web provides the streamer's local control surface: capture
// settings and live stats over HTTP.
package web

import (
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/settings"
)

// Status is the connection snapshot reported on /api/status.
type Status struct {
	Role      string `json:"role"`
	StreamID  string `json:"streamId"`
	State     string `json:"state"`
	Connected bool   `json:"connected"`
	PingMs    int64  `json:"pingMs"`
}

// Server is the local control server.
type Server struct {
	app    *fiber.App
	port   string
	store  *settings.Store
	logger *slog.Logger

	// OnStats reports the most recent stats window. Optional.
	OnStats func() consumer.Metrics

	// OnStatus reports the current connection status. Optional.
	OnStatus func() Status
}

// NewServer creates a control server backed by the given settings store.
func NewServer(port string, store *settings.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		port:   port,
		store:  store,
		logger: logger,
	}

	app := fiber.New(fiber.Config{
		AppName:               "telecam control",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/settings", s.handleGetSettings)
	api.Post("/settings", s.handleUpdateSettings)
	api.Post("/settings/preset/:name", s.handleApplyPreset)
	api.Get("/stats", s.handleStats)
	api.Get("/status", s.handleStatus)

	s.app = app
	return s
}

// Start serves on the configured port until Shutdown.
func (s *Server) Start() error {
	s.logger.Info("control server listening", "port", s.port)
	return s.app.Listen(":" + s.port)
}

// StartAsync starts the server in a goroutine.
func (s *Server) StartAsync() {
	go func() {
		if err := s.Start(); err != nil {
			s.logger.Error("control server stopped", "error", err)
		}
	}()
}

// Serve serves on an existing listener until Shutdown. Used by tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.app.Listener(ln)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
