package validation

import (
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssMarkers = []string{"<script", "<iframe", "javascript:", "onerror=", "onload=", "onclick="}

type Config struct {
	MaxMessageLength     int
	MaxDescriptionLength int
	AllowedContentTypes  []string
	Logger               *zap.Logger
}

// Middleware rejects unsupported content types and screens the free-text
// fields of /conversation and /transactions. Everything else, including
// the shape of /predict bodies, is left to the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxMessageLength == 0 {
		cfg.MaxMessageLength = 5000
	}
	if cfg.MaxDescriptionLength == 0 {
		cfg.MaxDescriptionLength = 500
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{fiber.MIMEApplicationJSON}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost {
			return c.Next()
		}

		contentType := c.Get(fiber.HeaderContentType)
		if contentType != "" && !allowedType(contentType, cfg.AllowedContentTypes) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Unsupported content type",
			})
		}

		var field string
		var limit int
		switch routeKey(c.Path()) {
		case "/conversation":
			field, limit = "message", cfg.MaxMessageLength
		case "/transactions":
			field, limit = "description", cfg.MaxDescriptionLength
		default:
			return c.Next()
		}

		var body map[string]interface{}
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid JSON format",
			})
		}

		raw, present := body[field]
		if !present || raw == nil {
			return c.Next()
		}
		text, ok := raw.(string)
		if !ok {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": field + " must be a string",
			})
		}

		if utf8.RuneCountInString(text) > limit {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": field + " exceeds maximum length",
			})
		}

		if containsXSS(text) {
			cfg.Logger.Warn("Potential XSS attempt",
				zap.String("ip", c.IP()),
				zap.String("path", c.Path()),
			)
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid " + field + " content",
			})
		}

		return c.Next()
	}
}

// routeKey folds the variants fiber's default routing sends to the same
// handler: trailing slashes and letter case.
func routeKey(path string) string {
	return strings.ToLower(strings.TrimRight(path, "/"))
}

func allowedType(contentType string, allowed []string) bool {
	for _, t := range allowed {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	lower := strings.ToLower(input)
	for _, m := range xssMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
