package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/internal/storage/models"
	"github.com/ecotracker/backend/internal/transactions"
	"github.com/ecotracker/backend/pkg/logger"
)

type TransactionHandler struct {
	store transactions.Store
}

func NewTransactionHandler(store transactions.Store) *TransactionHandler {
	return &TransactionHandler{
		store: store,
	}
}

func (h *TransactionHandler) List(c *fiber.Ctx) error {
	list, err := h.store.List(c.UserContext())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"transactions": list,
		"chartData":    transactions.Chart(list),
	})
}

func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	var req models.NewTransaction
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondError(c, fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrInvalidInput))
	}

	t, err := h.store.Add(c.UserContext(), req)
	if err != nil {
		return respondError(c, err)
	}

	metrics.TransactionsCreated.WithLabelValues(t.Impact).Inc()
	logger.Info("Transaction added",
		zap.Int("id", t.ID),
		zap.String("category", t.Category),
		zap.Float64("carbon", t.Carbon),
		zap.String("impact", t.Impact),
	)

	return c.JSON(t)
}
