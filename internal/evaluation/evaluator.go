// Package evaluation scores the impact classifier against a labelled set
// of production records.
package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/pkg/logger"
)

type Dataset struct {
	Items []Item `json:"items"`
}

// Item is one labelled record. Input uses the /predict request format.
type Item struct {
	Input features.Input   `json:"input"`
	Label classifier.Label `json:"label"`
}

// Report counts High as the positive class.
type Report struct {
	Total          int
	Evaluated      int
	Skipped        int
	Correct        int
	TruePositives  int
	FalsePositives int
	TrueNegatives  int
	FalseNegatives int
	Accuracy       float64
	Precision      float64
	Recall         float64
	F1             float64
	MeanConfidence float64
}

type Evaluator struct {
	normalizer *features.Normalizer
	model      classifier.Classifier
}

func NewEvaluator(normalizer *features.Normalizer, model classifier.Classifier) *Evaluator {
	return &Evaluator{
		normalizer: normalizer,
		model:      model,
	}
}

func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset: %w", err)
	}

	var dataset Dataset
	if err := json.Unmarshal(data, &dataset); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dataset: %w", err)
	}
	for i, item := range dataset.Items {
		if item.Label != classifier.Low && item.Label != classifier.High {
			return nil, fmt.Errorf("item %d: label must be Low or High, got %q", i, item.Label)
		}
	}
	return &dataset, nil
}

// Run classifies every item. Items the normalizer rejects are skipped; a
// classifier failure aborts the run.
func (e *Evaluator) Run(ctx context.Context, dataset *Dataset) (*Report, error) {
	logger.Info("Running dataset evaluation", zap.Int("items", len(dataset.Items)))

	report := &Report{Total: len(dataset.Items)}
	confidences := make([]float64, 0, len(dataset.Items))

	for i, item := range dataset.Items {
		vector, err := e.normalizer.Normalize(item.Input)
		if err != nil {
			logger.Warn("Skipping dataset item", zap.Int("index", i), zap.Error(err))
			report.Skipped++
			continue
		}

		prediction, err := e.model.Predict(ctx, vector)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}

		report.Evaluated++
		confidences = append(confidences, max(prediction.Probabilities[0], prediction.Probabilities[1]))

		switch {
		case prediction.Label == classifier.High && item.Label == classifier.High:
			report.TruePositives++
		case prediction.Label == classifier.High:
			report.FalsePositives++
		case item.Label == classifier.Low:
			report.TrueNegatives++
		default:
			report.FalseNegatives++
		}
	}

	report.Correct = report.TruePositives + report.TrueNegatives
	report.Accuracy = ratio(report.Correct, report.Evaluated)
	report.Precision = ratio(report.TruePositives, report.TruePositives+report.FalsePositives)
	report.Recall = ratio(report.TruePositives, report.TruePositives+report.FalseNegatives)
	if report.Precision+report.Recall > 0 {
		report.F1 = 2 * report.Precision * report.Recall / (report.Precision + report.Recall)
	}
	if len(confidences) > 0 {
		report.MeanConfidence = stat.Mean(confidences, nil)
	}

	logger.Info("Dataset evaluation completed",
		zap.Int("evaluated", report.Evaluated),
		zap.Int("skipped", report.Skipped),
		zap.Float64("accuracy", report.Accuracy),
		zap.Float64("f1", report.F1),
	)

	return report, nil
}

func ratio(n, d int) float64 {
	if d == 0 {
		return 0
	}
	return float64(n) / float64(d)
}

func (r *Report) String() string {
	return fmt.Sprintf(`
Evaluation Report
=================

Items: %d (evaluated %d, skipped %d)

Confusion (High is positive):
- True positives:  %d
- False positives: %d
- True negatives:  %d
- False negatives: %d

Accuracy:  %.3f
Precision: %.3f
Recall:    %.3f
F1:        %.3f

Mean confidence: %.3f
`,
		r.Total, r.Evaluated, r.Skipped,
		r.TruePositives,
		r.FalsePositives,
		r.TrueNegatives,
		r.FalseNegatives,
		r.Accuracy,
		r.Precision,
		r.Recall,
		r.F1,
		r.MeanConfidence,
	)
}
