package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/internal/qrcode"
)

type QRCodeHandler struct {
	defaults qrcode.Options
}

func NewQRCodeHandler(defaults qrcode.Options) *QRCodeHandler {
	return &QRCodeHandler{
		defaults: defaults,
	}
}

// options applies the url, title and color query parameters over the
// configured defaults.
func (h *QRCodeHandler) options(c *fiber.Ctx) qrcode.Options {
	opts := h.defaults
	if v := c.Query("url"); v != "" {
		opts.URL = v
	}
	if v := c.Query("title"); v != "" {
		opts.Title = v
	}
	if v := c.Query("color"); v != "" {
		opts.Color = v
	}
	return opts
}

func (h *QRCodeHandler) PNG(c *fiber.Ctx) error {
	data, err := qrcode.EncodePNG(h.options(c))
	if err != nil {
		return respondError(c, err)
	}

	metrics.QRCodesGenerated.Inc()
	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(data)
}

func (h *QRCodeHandler) HTML(c *fiber.Ctx) error {
	page, err := qrcode.HTML(h.options(c))
	if err != nil {
		return respondError(c, err)
	}

	metrics.QRCodesGenerated.Inc()
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(page)
}
