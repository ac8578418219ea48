package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"

	"github.com/ecotracker/backend/internal/api/handlers"
	"github.com/ecotracker/backend/internal/conversation"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/internal/middleware/ratelimit"
	"github.com/ecotracker/backend/internal/middleware/security"
	"github.com/ecotracker/backend/internal/middleware/validation"
	"github.com/ecotracker/backend/internal/pipeline"
	"github.com/ecotracker/backend/internal/qrcode"
	"github.com/ecotracker/backend/internal/transactions"
	"github.com/ecotracker/backend/pkg/config"
	"github.com/ecotracker/backend/pkg/logger"
)

// Dependencies are the caller-owned objects the routes serve.
type Dependencies struct {
	Engine       *pipeline.Engine
	Transactions transactions.Store
	History      *conversation.History
	Responder    conversation.Responder
	Checks       map[string]handlers.Check
	Statuses     map[string]handlers.Status
	// Predictions serves GET /predictions; the route is absent when nil.
	Predictions handlers.PredictionHistory
	// RequestLog enables per-request access logging.
	RequestLog bool
}

// NewApp builds the fiber application with middleware and routes. The
// returned stop func releases background resources.
func NewApp(cfg *config.Config, deps Dependencies) (*fiber.App, func()) {
	app := fiber.New(fiber.Config{
		AppName:               "EcoTracker",
		ReadTimeout:           time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:             cfg.Server.BodyLimit,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if deps.RequestLog {
		app.Use(fiberlogger.New())
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, DELETE, OPTIONS",
	}))
	app.Use(security.HeadersMiddleware(security.HeadersConfig{
		IsDevelopment: cfg.Server.Development,
	}))
	app.Use(validation.Middleware(validation.Config{
		Logger: logger.GetLogger(),
	}))

	stop := func() {}
	limited := func(c *fiber.Ctx) error { return c.Next() }
	if cfg.RateLimit.Enabled {
		rl := ratelimit.New(ratelimit.Config{
			MaxRequestsPerMinute: cfg.RateLimit.MaxRequestsPerMinute,
			Logger:               logger.GetLogger(),
		})
		limited = rl.Middleware()
		stop = rl.Stop
	}

	predictHandler := handlers.NewPredictHandler(deps.Engine)
	conversationHandler := handlers.NewConversationHandler(deps.History, deps.Responder)
	transactionHandler := handlers.NewTransactionHandler(deps.Transactions)
	qrHandler := handlers.NewQRCodeHandler(qrcode.Options{
		URL:      cfg.QRCode.URL,
		Title:    cfg.QRCode.Title,
		Color:    cfg.QRCode.Color,
		LogoPath: cfg.QRCode.Logo,
	})
	healthHandler := handlers.NewHealthHandler(deps.Checks, deps.Statuses)
	wsHandler := handlers.NewWebSocketHandler(deps.History, deps.Responder,
		time.Duration(cfg.LLM.TimeoutSec)*time.Second*time.Duration(max(cfg.LLM.MaxAttempts, 1)))

	app.Post("/predict", limited, predictHandler.Predict)
	if deps.Predictions != nil {
		app.Get("/predictions", handlers.NewPredictionsHandler(deps.Predictions).List)
	}

	app.Post("/conversation", limited, conversationHandler.Converse)
	app.Delete("/conversation", conversationHandler.Reset)
	app.Use("/ws/conversation", handlers.Upgrade)
	app.Get("/ws/conversation", websocket.New(wsHandler.HandleConnection))

	app.Get("/transactions", transactionHandler.List)
	app.Post("/transactions", transactionHandler.Create)

	app.Get("/insights", handlers.GetInsights)

	app.Get("/qrcode", qrHandler.PNG)
	app.Get("/qrcode-html", qrHandler.HTML)

	app.Get("/health", healthHandler.Health)
	app.Get("/ready", healthHandler.Ready)
	app.Get("/metrics", metrics.MetricsHandler())

	return app, stop
}
