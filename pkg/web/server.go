// Package web serves the vision status dashboard API.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"net"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-tagvision/pkg/hub"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
	"github.com/teslashibe/go-tagvision/pkg/vision"
)

// Source is what the dashboard reads from. *vision.Controller satisfies it.
type Source interface {
	Status() vision.Status
	Info(ctx context.Context) (protocol.CameraInfo, bool)
	Camera(i int) (vision.Provider, bool)
}

var _ Source = (*vision.Controller)(nil)

// ColorSwitcher is implemented by cameras that accept color profile commands.
type ColorSwitcher interface {
	SwitchColor(ctx context.Context, index int) error
}

// Server is the dashboard server
type Server struct {
	app    *fiber.App
	ln     net.Listener
	source Source
	logger *slog.Logger

	statusHub *hub.Hub
	cancelHub context.CancelFunc
}

// NewServer creates a dashboard for source.
func NewServer(source Source, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		source:    source,
		logger:    logger.With("component", "web"),
		statusHub: hub.New("status", logger),
	}

	app := fiber.New(fiber.Config{
		AppName:               "Vision Dashboard",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/cameras", s.handleCameras)
	api.Get("/heading", s.handleHeading)
	api.Get("/info", s.handleInfo)
	api.Post("/cameras/:index/color/:color", s.handleSwitchColor)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/status", websocket.New(s.handleStatusWS))

	s.app = app
	return s
}

// Listen starts the hub and serves on addr in the background.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("dashboard listen: %w", err)
	}
	s.ln = ln

	ctx, cancel := context.WithCancel(context.Background())
	s.cancelHub = cancel
	go s.statusHub.Run(ctx)

	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Warn("dashboard stopped", "error", err)
		}
	}()
	s.logger.Info("dashboard listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the address the dashboard is listening on
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Publish pushes the current controller status to websocket clients.
func (s *Server) Publish() {
	if err := s.statusHub.Publish("status", s.source.Status()); err != nil {
		s.logger.Warn("failed to publish status", "error", err)
	}
}

// Hub returns the status hub
func (s *Server) Hub() *hub.Hub {
	return s.statusHub
}

// Shutdown stops the hub and the HTTP server.
func (s *Server) Shutdown() error {
	if s.cancelHub != nil {
		s.cancelHub()
	}
	return s.app.Shutdown()
}
