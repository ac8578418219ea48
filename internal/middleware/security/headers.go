package security

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

type HeadersConfig struct {
	// ConnectSrc lists extra origins pages served by the API may call.
	ConnectSrc    []string
	IsDevelopment bool
}

// HeadersMiddleware sets browser hardening headers. The policy still allows
// the inline style, inline print handler and data: image of the QR page.
func HeadersMiddleware(cfg HeadersConfig) fiber.Handler {
	directives := []string{
		"default-src 'self'",
		"script-src 'self' 'unsafe-inline'",
		"style-src 'self' 'unsafe-inline'",
		"img-src 'self' data:",
		"connect-src " + strings.Join(append([]string{"'self'"}, cfg.ConnectSrc...), " "),
		"frame-ancestors 'none'",
		"base-uri 'self'",
		"form-action 'self'",
	}
	csp := strings.Join(directives, "; ")

	return func(c *fiber.Ctx) error {
		c.Set("X-Frame-Options", "DENY")
		c.Set("X-Content-Type-Options", "nosniff")
		c.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

		if !cfg.IsDevelopment {
			c.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Set("Content-Security-Policy", csp)

		return c.Next()
	}
}
