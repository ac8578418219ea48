package handlers

import (
	"context"
	"fmt"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/storage/models"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// PredictionHistory lists recorded predictions. *sqlite.Client implements
// it.
type PredictionHistory interface {
	RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error)
}

type PredictionsHandler struct {
	history PredictionHistory
}

func NewPredictionsHandler(history PredictionHistory) *PredictionsHandler {
	return &PredictionsHandler{
		history: history,
	}
}

// List answers GET /predictions?limit=N, newest first.
func (h *PredictionsHandler) List(c *fiber.Ctx) error {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxHistoryLimit {
			return respondError(c, fmt.Errorf("limit must be between 1 and %d: %w", maxHistoryLimit, apperr.ErrInvalidInput))
		}
		limit = n
	}

	records, err := h.history.RecentPredictions(c.UserContext(), limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"predictions": records,
	})
}
