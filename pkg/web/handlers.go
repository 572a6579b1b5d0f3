package web

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-tagvision/pkg/hub"
)

// HeadingResponse is the body of GET /api/heading
type HeadingResponse struct {
	Heading    float64 `json:"heading"`
	HasHeading bool    `json:"has_heading"`
	At         string  `json:"at,omitempty"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.source.Status())
}

func (s *Server) handleCameras(c *fiber.Ctx) error {
	return c.JSON(s.source.Status().Cameras)
}

func (s *Server) handleHeading(c *fiber.Ctx) error {
	st := s.source.Status()
	resp := HeadingResponse{Heading: st.Heading, HasHeading: st.HasHeading}
	if !st.HeadingAt.IsZero() {
		resp.At = st.HeadingAt.Format("15:04:05.000")
	}
	return c.JSON(resp)
}

func (s *Server) handleInfo(c *fiber.Ctx) error {
	info, ok := s.source.Info(c.UserContext())
	if !ok {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "camera info unavailable",
		})
	}
	return c.JSON(info)
}

func (s *Server) handleSwitchColor(c *fiber.Ctx) error {
	index, err1 := strconv.Atoi(c.Params("index"))
	color, err2 := strconv.Atoi(c.Params("color"))
	if err := errors.Join(err1, err2); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "camera and color must be integers",
		})
	}

	cam, ok := s.source.Camera(index)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "no such camera",
		})
	}
	switcher, ok := cam.(ColorSwitcher)
	if !ok {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{
			"error": "camera does not support color profiles",
		})
	}

	if err := switcher.SwitchColor(c.UserContext(), color); err != nil {
		s.logger.Warn("switch color failed", "camera", index, "color", color, "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	s.logger.Info("switched color", "camera", index, "color", color)
	return c.JSON(fiber.Map{
		"camera": index,
		"color":  color,
	})
}

// handleStatusWS sends the current status, then streams updates from the hub.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	if err := c.WriteJSON(hub.NewEvent("status", s.source.Status())); err != nil {
		return
	}
	hub.NewClient(s.statusHub, c).Run()
}
