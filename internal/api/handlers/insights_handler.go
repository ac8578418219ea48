package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ecotracker/backend/internal/insights"
)

func GetInsights(c *fiber.Ctx) error {
	return c.JSON(insights.Get())
}
