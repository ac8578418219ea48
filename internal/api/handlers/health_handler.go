package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/pkg/logger"
)

// Check probes one dependency for readiness.
type Check func(ctx context.Context) error

// Status describes a component for /health without failing it.
type Status func() string

type HealthHandler struct {
	checks   map[string]Check
	statuses map[string]Status
}

func NewHealthHandler(checks map[string]Check, statuses map[string]Status) *HealthHandler {
	return &HealthHandler{
		checks:   checks,
		statuses: statuses,
	}
}

func (h *HealthHandler) Health(c *fiber.Ctx) error {
	body := fiber.Map{
		"status": "healthy",
		"time":   time.Now().Unix(),
	}

	if len(h.statuses) > 0 {
		components := fiber.Map{}
		for name, status := range h.statuses {
			components[name] = status()
		}
		body["components"] = components
	}

	return c.JSON(body)
}

// Ready runs every check and answers 503 if any of them fails.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
	defer cancel()

	results := fiber.Map{}
	ready := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			logger.Warn("Readiness check failed", zap.String("check", name), zap.Error(err))
			results[name] = err.Error()
			ready = false
			continue
		}
		results[name] = "ok"
	}

	if !ready {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "not ready",
			"checks": results,
		})
	}

	return c.JSON(fiber.Map{
		"status": "ready",
		"checks": results,
	})
}
