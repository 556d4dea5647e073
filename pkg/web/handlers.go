package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-telecam/pkg/consumer"
	"github.com/teslashibe/go-telecam/pkg/settings"
)

// settingsResponse is the body of GET /api/settings.
type settingsResponse struct {
	Settings    settings.Settings     `json:"settings"`
	Resolutions []settings.Resolution `json:"resolutions"`
	Presets     []string              `json:"presets"`
	Errors      map[string]string     `json:"errors,omitempty"`
}

func (s *Server) handleGetSettings(c *fiber.Ctx) error {
	return c.JSON(settingsResponse{
		Settings:    s.store.Get(),
		Resolutions: settings.Resolutions(),
		Presets:     settings.PresetNames(),
		Errors:      s.store.Errors(),
	})
}

// handleUpdateSettings applies a partial settings update. Unmentioned
// fields keep their current values; an invalid combination is rejected
// whole, leaving the store untouched.
func (s *Server) handleUpdateSettings(c *fiber.Ctx) error {
	var patch settings.Patch
	if err := c.BodyParser(&patch); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "malformed settings body",
		})
	}

	if err := s.store.Update(patch); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Info("settings updated", "settings", s.store.Get())
	return c.JSON(fiber.Map{"settings": s.store.Get()})
}

func (s *Server) handleApplyPreset(c *fiber.Ctx) error {
	name := c.Params("name")
	patch := settings.GetPreset(name)
	if patch == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error":   "unknown preset " + name,
			"presets": settings.PresetNames(),
		})
	}

	if err := s.store.Update(*patch); err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	s.logger.Info("preset applied", "preset", name)
	return c.JSON(fiber.Map{"preset": name, "settings": s.store.Get()})
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	var m consumer.Metrics
	if s.OnStats != nil {
		m = s.OnStats()
	}
	return c.JSON(m)
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	var st Status
	if s.OnStatus != nil {
		st = s.OnStatus()
	}
	return c.JSON(st)
}
