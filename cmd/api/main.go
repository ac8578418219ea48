package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/api"
	"github.com/ecotracker/backend/internal/api/handlers"
	"github.com/ecotracker/backend/internal/cache/redis"
	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/conversation"
	"github.com/ecotracker/backend/internal/explain"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/internal/llm"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/internal/pipeline"
	"github.com/ecotracker/backend/internal/storage/sqlite"
	"github.com/ecotracker/backend/internal/transactions"
	"github.com/ecotracker/backend/pkg/config"
	appLogger "github.com/ecotracker/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting EcoTracker API Server")

	metrics.Init()

	checks := map[string]handlers.Check{}

	var store transactions.Store
	var recorder pipeline.Recorder
	var predictions handlers.PredictionHistory
	switch cfg.Store.Backend {
	case "sqlite":
		sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
		if err != nil {
			appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
		}
		defer sqliteClient.Close()

		if err := sqliteClient.InitSchema(); err != nil {
			appLogger.Fatal("Failed to initialize schema", zap.Error(err))
		}

		store = transactions.NewPersistentStore(sqliteClient)
		recorder = sqliteClient
		predictions = sqliteClient
		checks["sqlite"] = sqliteClient.Ping
	case "memory":
		store = transactions.NewMemoryStore()
	default:
		appLogger.Fatal("Unknown store backend", zap.String("backend", cfg.Store.Backend))
	}

	var cache llm.Cache
	if cfg.Cache.Enabled {
		redisClient, err := redis.NewClient(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			appLogger.Warn("Recommendation cache disabled", zap.Error(err))
		} else {
			defer redisClient.Close()
			cache = redisClient
			checks["redis"] = redisClient.Ping
		}
	}

	if cfg.LLM.APIKey == "" {
		appLogger.Warn("No LLM API key configured, set ECOTRACKER_LLM_APIKEY")
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSec) * time.Second,
		MaxAttempts: cfg.LLM.MaxAttempts,
		CacheTTL:    time.Duration(cfg.Cache.TTLSec) * time.Second,
	}, cache)

	model, err := newClassifier(cfg)
	if err != nil {
		appLogger.Fatal("Failed to load classifier", zap.Error(err))
	}

	explainer := explain.New(model, explain.Config{
		NumFeatures:  cfg.Explain.NumFeatures,
		NumSamples:   cfg.Explain.NumSamples,
		KernelWidth:  cfg.Explain.KernelWidth,
		PerturbScale: cfg.Explain.PerturbScale,
		MinScale:     cfg.Explain.MinScale,
		Alpha:        cfg.Explain.Alpha,
		Seed:         cfg.Explain.Seed,
	})

	engine := pipeline.NewEngine(
		features.NewNormalizer(cfg.Features.StrictMaterials),
		model,
		explainer,
		llmClient,
		recorder,
	)

	app, stop := api.NewApp(cfg, api.Dependencies{
		Engine:       engine,
		Transactions: store,
		History:      conversation.NewHistory(),
		Responder:    llmClient,
		Checks:       checks,
		Statuses:     map[string]handlers.Status{"llm": llmClient.CircuitStatus},
		Predictions:  predictions,
		RequestLog:   true,
	})
	defer stop()

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		appLogger.Error("Shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}

func newClassifier(cfg *config.Config) (classifier.Classifier, error) {
	switch cfg.Model.Kind {
	case "logistic":
		return classifier.LoadLogistic(cfg.Model.Path)
	case "remote":
		timeout := time.Duration(cfg.Model.TimeoutSec) * time.Second
		remote := classifier.NewRemote(cfg.Model.URL, features.Columns(), timeout)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := remote.PredictProba(ctx, [][]float64{make([]float64, len(features.Columns()))}); err != nil {
			appLogger.Warn("Model sidecar not reachable yet", zap.String("url", cfg.Model.URL), zap.Error(err))
		}
		return remote, nil
	default:
		return nil, fmt.Errorf("unknown model kind %q", cfg.Model.Kind)
	}
}
