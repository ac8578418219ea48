// Package pipeline runs the /predict path: normalise, classify, explain,
// render the prompt and fetch the recommendation.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/explain"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/internal/llm"
	"github.com/ecotracker/backend/internal/metrics"
	"github.com/ecotracker/backend/internal/prompt"
	"github.com/ecotracker/backend/internal/storage/models"
	"github.com/ecotracker/backend/pkg/logger"
)

// Recommender turns a rendered prompt into advice. *llm.Client
// implements it.
type Recommender interface {
	Recommend(ctx context.Context, prompt string) (string, error)
}

// Recorder keeps an audit trail of predictions. *sqlite.Client
// implements it.
type Recorder interface {
	InsertPrediction(ctx context.Context, record *models.PredictionRecord) error
}

type Engine struct {
	normalizer  *features.Normalizer
	model       classifier.Classifier
	explainer   *explain.Explainer
	recommender Recommender
	recorder    Recorder
}

type Result struct {
	ID             string                 `json:"-"`
	Prediction     classifier.Label       `json:"prediction"`
	LimeFeatures   []explain.Contribution `json:"lime_features"`
	Recommendation string                 `json:"recommendation"`
	// Carbon is the request's carbon_emission converted from tons to kg.
	Carbon      float64 `json:"carbon"`
	ImpactLevel string  `json:"impact_level"`
	LatencyMS   int     `json:"-"`
}

// NewEngine wires the stages. recorder may be nil.
func NewEngine(normalizer *features.Normalizer, model classifier.Classifier, explainer *explain.Explainer, recommender Recommender, recorder Recorder) *Engine {
	return &Engine{
		normalizer:  normalizer,
		model:       model,
		explainer:   explainer,
		recommender: recommender,
		recorder:    recorder,
	}
}

func (e *Engine) Predict(ctx context.Context, in features.Input) (*Result, error) {
	startTime := time.Now()
	predictionID := uuid.New().String()
	log := logger.With(zap.String("prediction_id", predictionID))

	result, err := e.predict(ctx, log, predictionID, startTime, in)
	if err != nil {
		metrics.PredictionsTotal.WithLabelValues("error").Inc()
		log.Warn("Prediction failed", zap.Error(err))
		return nil, err
	}

	result.LatencyMS = int(time.Since(startTime).Milliseconds())
	metrics.PredictionsTotal.WithLabelValues("success").Inc()
	metrics.PredictedLabels.WithLabelValues(string(result.Prediction)).Inc()
	metrics.PredictionDuration.WithLabelValues("total").Observe(time.Since(startTime).Seconds())

	log.Info("Prediction completed",
		zap.String("prediction", string(result.Prediction)),
		zap.String("impact_level", result.ImpactLevel),
		zap.Int("latency_ms", result.LatencyMS),
	)

	return result, nil
}

func (e *Engine) predict(ctx context.Context, log *zap.Logger, id string, startTime time.Time, in features.Input) (*Result, error) {
	stage := stageTimer()

	vector, err := e.normalizer.Normalize(in)
	if err != nil {
		return nil, err
	}
	stage("normalize")

	prediction, err := e.model.Predict(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("classification: %w", err)
	}
	stage("classify")

	log.Debug("Classified",
		zap.String("label", string(prediction.Label)),
		zap.Float64("p_low", prediction.Probabilities[0]),
		zap.Float64("p_high", prediction.Probabilities[1]),
	)

	explanation, err := e.explainer.Explain(ctx, vector)
	if err != nil {
		return nil, fmt.Errorf("explanation: %w", err)
	}
	metrics.ExplanationScore.Observe(explanation.Score)
	stage("explain")

	text := prompt.Render(explanation.Contributions)

	recommendation, err := e.recommender.Recommend(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("recommendation: %w", err)
	}
	recommendation = llm.Sanitize(recommendation)
	stage("recommend")

	carbon, _ := vector.Get(features.ColCarbon)

	result := &Result{
		ID:             id,
		Prediction:     prediction.Label,
		LimeFeatures:   explanation.Contributions,
		Recommendation: recommendation,
		Carbon:         carbon * 1000,
		ImpactLevel:    ImpactLevel(prediction.Label),
	}

	if e.recorder != nil {
		material := ""
		if in.GoodUsed != nil {
			material = *in.GoodUsed
		}
		record := &models.PredictionRecord{
			ID:              id,
			Material:        material,
			Label:           string(prediction.Label),
			ProbabilityLow:  prediction.Probabilities[0],
			ProbabilityHigh: prediction.Probabilities[1],
			Recommendation:  recommendation,
			LatencyMS:       int(time.Since(startTime).Milliseconds()),
			CreatedAt:       time.Now(),
		}
		if err := e.recorder.InsertPrediction(ctx, record); err != nil {
			log.Warn("Failed to record prediction", zap.Error(err))
		}
	}

	return result, nil
}

// ImpactLevel is "high" for a High prediction and "low" otherwise.
func ImpactLevel(label classifier.Label) string {
	if label == classifier.High {
		return "high"
	}
	return "low"
}

// stageTimer returns a func that observes the time since its previous call
// under the given stage label.
func stageTimer() func(stage string) {
	last := time.Now()
	return func(stage string) {
		now := time.Now()
		metrics.PredictionDuration.WithLabelValues(stage).Observe(now.Sub(last).Seconds())
		last = now
	}
}
