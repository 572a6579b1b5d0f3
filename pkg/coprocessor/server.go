// Package coprocessor provides a simulated vision coprocessor that speaks the
// camera protocol over WebSocket. It backs integration tests and bench runs
// without camera hardware.
package coprocessor

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/teslashibe/go-tagvision/pkg/protocol"
)

const replyOK = `{"status":"ok"}`

// Server is a scripted coprocessor. The scene it reports can be changed at any time.
type Server struct {
	app    *fiber.App
	ln     net.Listener
	logger *slog.Logger

	mu       sync.RWMutex
	info     protocol.CameraInfo
	tags     []protocol.TagObservation
	piece    *protocol.PieceObservation
	silent   bool
	delay    time.Duration
	commands []string

	connsMu sync.Mutex
	conns   map[string]*websocket.Conn

	// Stats
	commandsReceived atomic.Uint64
	repliesSent      atomic.Uint64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithInfo sets the camera info the server reports.
func WithInfo(info protocol.CameraInfo) Option {
	return func(s *Server) {
		s.info = info
	}
}

// DefaultInfo returns a plausible camera description with a fresh identifier.
func DefaultInfo(name string) protocol.CameraInfo {
	return protocol.CameraInfo{
		Identifier:                 uuid.NewString(),
		CameraName:                 name,
		HorizontalFocalLength:      600,
		VerticalFocalLength:        600,
		Height:                     0.3,
		HorizontalResolutionPixels: 1280,
		VerticalResolutionPixels:   720,
		ProcessingScale:            2,
		TiltAngle:                  0,
		HorizontalFOV:              1.2,
		VerticalFOV:                0.75,
		ActiveColor:                0,
		Colors: []protocol.ColorProfile{
			{Red: 255, Green: 140, Blue: 0, Difference: 40, Blur: 3},
		},
	}
}

// New creates a simulated coprocessor. Call Listen to start serving.
func New(opts ...Option) *Server {
	s := &Server{
		logger: slog.Default(),
		info:   DefaultInfo("sim"),
		tags:   []protocol.TagObservation{},
		conns:  make(map[string]*websocket.Conn),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "coprocessor")

	app := fiber.New(fiber.Config{
		AppName:               "Coprocessor Simulator",
		DisableStartupMessage: true,
	})

	// Coprocessors serve the camera endpoint at the root path
	app.Use("/", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/", websocket.New(s.handleCamera))

	s.app = app
	return s
}

// Listen starts serving on addr (use "127.0.0.1:0" for an ephemeral port).
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("coprocessor listen: %w", err)
	}
	s.ln = ln
	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.logger.Warn("server stopped", "error", err)
		}
	}()
	s.logger.Info("listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the host:port the server is listening on
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Shutdown stops the server and closes every camera connection.
func (s *Server) Shutdown() error {
	s.DropConnections()
	err := s.app.Shutdown()
	if s.ln != nil {
		s.ln.Close()
	}
	return err
}

// =============================================================================
// Scene control
// =============================================================================

// SetTags replaces the tags reported by "fa"
func (s *Server) SetTags(tags ...protocol.TagObservation) {
	s.mu.Lock()
	s.tags = append([]protocol.TagObservation{}, tags...)
	s.mu.Unlock()
}

// SetPiece sets the piece reported by "fp"
func (s *Server) SetPiece(piece protocol.PieceObservation) {
	s.mu.Lock()
	s.piece = &piece
	s.mu.Unlock()
}

// ClearPiece makes "fp" report that no piece is visible
func (s *Server) ClearPiece() {
	s.mu.Lock()
	s.piece = nil
	s.mu.Unlock()
}

// Info returns the camera info as currently stored
func (s *Server) Info() protocol.CameraInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := s.info
	info.Colors = append([]protocol.ColorProfile{}, s.info.Colors...)
	return info
}

// SetSilent makes the server swallow commands without replying
func (s *Server) SetSilent(silent bool) {
	s.mu.Lock()
	s.silent = silent
	s.mu.Unlock()
}

// SetDelay delays every reply by d
func (s *Server) SetDelay(d time.Duration) {
	s.mu.Lock()
	s.delay = d
	s.mu.Unlock()
}

// Commands returns every command received so far, in order
func (s *Server) Commands() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.commands...)
}

// ConnectionCount returns the number of open camera connections
func (s *Server) ConnectionCount() int {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	return len(s.conns)
}

// DropConnections closes every open camera connection from the server side.
func (s *Server) DropConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for id, c := range s.conns {
		c.Close()
		delete(s.conns, id)
	}
}

// Stats returns the number of commands received and replies sent
func (s *Server) Stats() (commands, replies uint64) {
	return s.commandsReceived.Load(), s.repliesSent.Load()
}

// =============================================================================
// Connection handling
// =============================================================================

func (s *Server) handleCamera(c *websocket.Conn) {
	id := uuid.NewString()[:8]

	s.connsMu.Lock()
	s.conns[id] = c
	s.connsMu.Unlock()
	s.logger.Debug("camera client connected", "client", id)

	defer func() {
		s.connsMu.Lock()
		delete(s.conns, id)
		s.connsMu.Unlock()
		s.logger.Debug("camera client disconnected", "client", id)
	}()

	for {
		msgType, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}

		cmd := string(data)
		s.commandsReceived.Add(1)

		s.mu.Lock()
		s.commands = append(s.commands, cmd)
		silent, delay := s.silent, s.delay
		s.mu.Unlock()

		if silent {
			continue
		}
		reply := s.respond(cmd)
		if delay > 0 {
			time.Sleep(delay)
		}
		if err := c.WriteMessage(websocket.TextMessage, []byte(reply)); err != nil {
			s.logger.Debug("write failed", "client", id, "error", err)
			return
		}
		s.repliesSent.Add(1)
	}
}

// respond builds the reply for one command.
func (s *Server) respond(cmd string) string {
	switch {
	case cmd == protocol.CmdInfo:
		return s.encode(s.Info())

	case cmd == protocol.CmdTags:
		s.mu.RLock()
		tags := s.tags
		s.mu.RUnlock()
		return s.encode(tags)

	case cmd == protocol.CmdPiece:
		s.mu.RLock()
		piece := s.piece
		s.mu.RUnlock()
		if piece == nil {
			return errorReply("no piece detected")
		}
		return s.encode(piece)

	case strings.HasPrefix(cmd, protocol.SwitchColorPrefix):
		index, err := strconv.Atoi(strings.TrimPrefix(cmd, protocol.SwitchColorPrefix))
		if err != nil {
			return errorReply("invalid color index")
		}
		if err := s.switchColor(index); err != nil {
			return errorReply(err.Error())
		}
		return replyOK

	case strings.HasPrefix(cmd, protocol.SaveColorsPrefix):
		var colors []protocol.ColorProfile
		if err := json.Unmarshal([]byte(strings.TrimPrefix(cmd, protocol.SaveColorsPrefix)), &colors); err != nil {
			return errorReply("invalid color list")
		}
		s.mu.Lock()
		s.info.Colors = colors
		if int(s.info.ActiveColor) >= len(colors) {
			s.info.ActiveColor = 0
		}
		s.mu.Unlock()
		return replyOK
	}

	return errorReply("unknown command")
}

func (s *Server) switchColor(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.info.Colors) {
		return errors.New("color index out of range")
	}
	s.info.ActiveColor = float64(index)
	return nil
}

func (s *Server) encode(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Warn("failed to encode reply", "error", err)
		return errorReply("encode failed")
	}
	return string(data)
}

func errorReply(msg string) string {
	data, _ := json.Marshal(map[string]string{"error": msg})
	return string(data)
}
