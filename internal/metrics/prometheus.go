package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ecotracker_prediction_stage_duration_seconds",
			Help:    "Duration of each /predict pipeline stage in seconds",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"stage"},
	)

	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"status"},
	)

	PredictedLabels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_predicted_labels_total",
			Help: "Predicted environmental impact classes",
		},
		[]string{"label"},
	)

	ExplanationScore = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ecotracker_explanation_score",
			Help:    "Weighted R² of the local surrogate model",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	LLMTokensUsed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_llm_tokens_used",
			Help: "Total LLM tokens used",
		},
		[]string{"model", "type"},
	)

	LLMRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_llm_requests_total",
			Help: "Total chat-completion requests",
		},
		[]string{"status"},
	)

	CircuitState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ecotracker_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_cache_hits_total",
			Help: "Total cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_cache_misses_total",
			Help: "Total cache misses",
		},
		[]string{"cache_type"},
	)

	ConversationTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_conversation_turns_total",
			Help: "Conversation turns processed",
		},
		[]string{"status"},
	)

	TransactionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ecotracker_transactions_created_total",
			Help: "Transactions recorded, by impact level",
		},
		[]string{"impact"},
	)

	QRCodesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ecotracker_qrcodes_generated_total",
			Help: "Total QR codes generated",
		},
	)
)

func Init() {
	prometheus.MustRegister(PredictionDuration)
	prometheus.MustRegister(PredictionsTotal)
	prometheus.MustRegister(PredictedLabels)
	prometheus.MustRegister(ExplanationScore)
	prometheus.MustRegister(LLMTokensUsed)
	prometheus.MustRegister(LLMRequests)
	prometheus.MustRegister(CircuitState)
	prometheus.MustRegister(CacheHits)
	prometheus.MustRegister(CacheMisses)
	prometheus.MustRegister(ConversationTurns)
	prometheus.MustRegister(TransactionsCreated)
	prometheus.MustRegister(QRCodesGenerated)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
