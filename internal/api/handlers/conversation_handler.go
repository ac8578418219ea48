package handlers

import (
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/conversation"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/pkg/logger"
)

type ConversationHandler struct {
	history   *conversation.History
	responder conversation.Responder
}

func NewConversationHandler(history *conversation.History, responder conversation.Responder) *ConversationHandler {
	return &ConversationHandler{
		history:   history,
		responder: responder,
	}
}

func (h *ConversationHandler) Converse(c *fiber.Ctx) error {
	var req struct {
		Message *string `json:"message"`
	}

	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return respondError(c, fmt.Errorf("invalid request body: %v: %w", err, apperr.ErrInvalidInput))
	}
	if req.Message == nil {
		return respondError(c, fmt.Errorf("message is required: %w", apperr.ErrInvalidInput))
	}

	history, err := h.history.Send(c.UserContext(), h.responder, *req.Message)
	if err != nil {
		metrics.ConversationTurns.WithLabelValues("error").Inc()
		return respondError(c, err)
	}
	metrics.ConversationTurns.WithLabelValues("success").Inc()

	return c.JSON(fiber.Map{
		"response": history,
	})
}

// Reset clears the shared conversation.
func (h *ConversationHandler) Reset(c *fiber.Ctx) error {
	cleared := h.history.Len()
	h.history.Reset()
	logger.Info("Conversation reset", zap.Int("messages", cleared))
	return c.SendStatus(fiber.StatusNoContent)
}
