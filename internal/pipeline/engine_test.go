package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/explain"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/internal/storage/models"
)

type fakeRecommender struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeRecommender) Recommend(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

type fakeRecorder struct {
	records []*models.PredictionRecord
}

func (f *fakeRecorder) InsertPrediction(_ context.Context, r *models.PredictionRecord) error {
	f.records = append(f.records, r)
	return nil
}

func sampleInput(material string) features.Input {
	q, c, w, ws := 2.5, 1.5, 500.0, 0.5
	return features.Input{
		GoodUsed:       &material,
		QuantityUsed:   &q,
		CarbonEmission: &c,
		WaterUsage:     &w,
		WasteGenerated: &ws,
	}
}

func newTestEngine(t *testing.T, model classifier.Classifier, rec Recommender, recorder Recorder) *Engine {
	t.Helper()

	if model == nil {
		m, err := classifier.LoadLogistic("")
		if err != nil {
			t.Fatalf("LoadLogistic: %v", err)
		}
		model = m
	}
	explainer := explain.New(model, explain.Config{NumSamples: 400, Seed: 7})
	return NewEngine(features.NewNormalizer(false), model, explainer, rec, recorder)
}

func TestPredictAllMaterials(t *testing.T) {
	rec := &fakeRecommender{reply: "Pick a recycled option next time."}
	engine := newTestEngine(t, nil, rec, nil)

	for _, m := range features.Materials() {
		res, err := engine.Predict(context.Background(), sampleInput(string(m)))
		if err != nil {
			t.Fatalf("%s: Predict: %v", m, err)
		}
		if res.Prediction != classifier.Low && res.Prediction != classifier.High {
			t.Errorf("%s: unexpected label %q", m, res.Prediction)
		}
		if res.Recommendation == "" {
			t.Errorf("%s: empty recommendation", m)
		}
		if res.Carbon != 1500 {
			t.Errorf("%s: carbon %v want 1500", m, res.Carbon)
		}
		if res.ImpactLevel != ImpactLevel(res.Prediction) {
			t.Errorf("%s: impact %q for label %q", m, res.ImpactLevel, res.Prediction)
		}
		if len(res.LimeFeatures) == 0 || len(res.LimeFeatures) > 10 {
			t.Errorf("%s: %d contributions", m, len(res.LimeFeatures))
		}
		if res.ID == "" {
			t.Errorf("%s: missing prediction id", m)
		}
	}

	if len(rec.prompts) != len(features.Materials()) {
		t.Fatalf("expected one prompt per request, got %d", len(rec.prompts))
	}
	if !strings.Contains(rec.prompts[0], "good_used_") {
		t.Fatalf("prompt lacks material contributions: %q", rec.prompts[0])
	}
}

func TestImpactLevel(t *testing.T) {
	if ImpactLevel(classifier.High) != "high" || ImpactLevel(classifier.Low) != "low" {
		t.Fatal("unexpected impact mapping")
	}
}

func TestPredictInvalidInput(t *testing.T) {
	rec := &fakeRecommender{reply: "x"}
	engine := newTestEngine(t, nil, rec, nil)

	in := sampleInput("Plastic")
	in.WaterUsage = nil

	_, err := engine.Predict(context.Background(), in)
	if apperr.Status(err) != 400 {
		t.Fatalf("expected 400 error, got %v", err)
	}
	if len(rec.prompts) != 0 {
		t.Fatal("recommender must not be called for invalid input")
	}
}

func TestPredictUnknownMaterialReachesClassifier(t *testing.T) {
	rec := &fakeRecommender{reply: "ok"}
	engine := newTestEngine(t, nil, rec, nil)

	res, err := engine.Predict(context.Background(), sampleInput("Aluminium"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if res.Prediction == "" {
		t.Fatal("expected a label for an unknown material")
	}
}

func TestPredictShapeMismatch(t *testing.T) {
	cols := features.Columns()[:len(features.Columns())-1]
	model, err := classifier.NewLogistic(classifier.Artefact{
		Classes:      []string{"Low", "High"},
		Threshold:    0.5,
		Columns:      cols,
		Coefficients: make([]float64, len(cols)),
	})
	if err != nil {
		t.Fatalf("NewLogistic: %v", err)
	}

	engine := newTestEngine(t, model, &fakeRecommender{reply: "x"}, nil)
	_, err = engine.Predict(context.Background(), sampleInput("Plastic"))
	if !errors.Is(err, apperr.ErrInputShape) {
		t.Fatalf("expected ErrInputShape, got %v", err)
	}
}

func TestPredictRecommendationFailure(t *testing.T) {
	rec := &fakeRecommender{err: apperr.ErrRemoteService}
	engine := newTestEngine(t, nil, rec, nil)

	_, err := engine.Predict(context.Background(), sampleInput("Steel"))
	if apperr.Status(err) != 502 {
		t.Fatalf("expected 502 error, got %v", err)
	}
}

func TestPredictSanitizesAndRecords(t *testing.T) {
	rec := &fakeRecommender{reply: "Steel drives this purchase. Its weight was +0.40 in the analysis. Choose recycled steel next time."}
	recorder := &fakeRecorder{}
	engine := newTestEngine(t, nil, rec, recorder)

	res, err := engine.Predict(context.Background(), sampleInput("Steel"))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if strings.Contains(res.Recommendation, "+0.40") {
		t.Fatalf("internal detail leaked: %q", res.Recommendation)
	}

	if len(recorder.records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recorder.records))
	}
	r := recorder.records[0]
	if r.ID != res.ID || r.Material != "Steel" || r.Label != string(res.Prediction) {
		t.Fatalf("unexpected record %+v", r)
	}
	if sum := r.ProbabilityLow + r.ProbabilityHigh; sum < 0.999 || sum > 1.001 {
		t.Fatalf("probabilities do not sum to 1: %v", sum)
	}
}
