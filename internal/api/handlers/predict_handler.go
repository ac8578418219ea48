package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/internal/pipeline"
)

type PredictHandler struct {
	engine *pipeline.Engine
}

func NewPredictHandler(engine *pipeline.Engine) *PredictHandler {
	return &PredictHandler{
		engine: engine,
	}
}

// Predict decodes the body itself rather than through BodyParser so that a
// missing Content-Type still reads as JSON.
func (h *PredictHandler) Predict(c *fiber.Ctx) error {
	var in features.Input
	if err := json.Unmarshal(c.Body(), &in); err != nil {
		return respondError(c, fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrInvalidInput))
	}

	result, err := h.engine.Predict(c.UserContext(), in)
	if err != nil {
		return respondError(c, err)
	}

	c.Set("X-Prediction-ID", result.ID)
	return c.JSON(result)
}
