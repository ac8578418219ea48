package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/pkg/logger"
)

// respondError writes {"error": ...} with the status apperr assigns to err.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.Status(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error("Request failed",
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}
