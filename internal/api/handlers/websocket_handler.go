package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/conversation"
	"github.com/ecotracker/backend/internal/llm"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/pkg/logger"
)

type WebSocketHandler struct {
	history   *conversation.History
	responder conversation.Responder
	timeout   time.Duration
}

func NewWebSocketHandler(history *conversation.History, responder conversation.Responder, timeout time.Duration) *WebSocketHandler {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &WebSocketHandler{
		history:   history,
		responder: responder,
		timeout:   timeout,
	}
}

// Upgrade rejects plain HTTP requests on the websocket route.
func Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Error("Failed to read WebSocket message", zap.Error(err))
			}
			break
		}

		if msg.Type != "message" {
			continue
		}

		if err := h.streamReply(c, msg.Content); err != nil {
			logger.Error("Failed to stream reply", zap.Error(err))
			h.sendError(c, err.Error())
		}
	}
}

func (h *WebSocketHandler) streamReply(c *websocket.Conn, message string) error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	if err := h.sendChunk(c, "status", "Thinking..."); err != nil {
		return err
	}

	history, err := h.history.Send(ctx, h.responder, message)
	if err != nil {
		metrics.ConversationTurns.WithLabelValues("error").Inc()
		return err
	}
	metrics.ConversationTurns.WithLabelValues("success").Inc()

	reply := history[len(history)-1].Content
	words := splitIntoWords(reply)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 && word != "\n" {
			chunk += " "
		}

		if err := h.sendChunk(c, "chunk", chunk); err != nil {
			return err
		}
	}

	return h.sendComplete(c, history)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	return c.WriteJSON(fiber.Map{
		"type":    msgType,
		"content": content,
	})
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, history []llm.Message) error {
	return c.WriteJSON(fiber.Map{
		"type":     "complete",
		"response": history,
	})
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(fiber.Map{
		"type":  "error",
		"error": errorMsg,
	})
}

// splitIntoWords splits on spaces and keeps line breaks as their own
// tokens.
func splitIntoWords(text string) []string {
	words := []string{}
	current := []rune{}

	for _, r := range text {
		switch r {
		case ' ', '\n':
			if len(current) > 0 {
				words = append(words, string(current))
				current = current[:0]
			}
			if r == '\n' {
				words = append(words, "\n")
			}
		default:
			current = append(current, r)
		}
	}

	if len(current) > 0 {
		words = append(words, string(current))
	}

	return words
}
