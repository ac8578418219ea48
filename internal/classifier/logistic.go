package classifier

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/pkg/logger"
)

//go:embed models/default.json
var defaultModel []byte

// Artefact is the JSON form of a trained logistic model.
type Artefact struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Classes      []string  `json:"classes"`
	Threshold    float64   `json:"threshold"`
	Columns      []string  `json:"columns"`
	Coefficients []float64 `json:"coefficients"`
	Intercept    float64   `json:"intercept"`
}

type LogisticModel struct {
	artefact Artefact
}

// LoadLogistic reads a model artefact from path, or the embedded default
// model when path is empty.
func LoadLogistic(path string) (*LogisticModel, error) {
	data := defaultModel
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read model file: %w", err)
		}
	}

	var a Artefact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal model: %w", err)
	}

	m, err := NewLogistic(a)
	if err != nil {
		return nil, err
	}

	logger.Info("Classifier loaded",
		zap.String("name", a.Name),
		zap.String("version", a.Version),
		zap.Int("columns", len(a.Columns)),
		zap.Float64("threshold", m.artefact.Threshold),
	)

	return m, nil
}

func NewLogistic(a Artefact) (*LogisticModel, error) {
	if len(a.Classes) != 2 || Label(a.Classes[0]) != Low || Label(a.Classes[1]) != High {
		return nil, fmt.Errorf("model classes must be [Low High], got %v", a.Classes)
	}
	if len(a.Columns) == 0 || len(a.Columns) != len(a.Coefficients) {
		return nil, fmt.Errorf("model has %d columns and %d coefficients", len(a.Columns), len(a.Coefficients))
	}
	if a.Threshold == 0 {
		a.Threshold = 0.5
	}
	return &LogisticModel{artefact: a}, nil
}

func (m *LogisticModel) Columns() []string {
	out := make([]string, len(m.artefact.Columns))
	copy(out, m.artefact.Columns)
	return out
}

func (m *LogisticModel) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	if err := CheckShape(m.artefact.Columns, v); err != nil {
		return Prediction{}, err
	}

	proba, err := m.PredictProba(ctx, [][]float64{v.Values})
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Label:         labelFor(proba[0], m.artefact.Threshold),
		Probabilities: proba[0],
	}, nil
}

func (m *LogisticModel) PredictProba(_ context.Context, rows [][]float64) ([][2]float64, error) {
	if err := checkRows(len(m.artefact.Coefficients), rows); err != nil {
		return nil, err
	}

	out := make([][2]float64, len(rows))
	for i, row := range rows {
		z := m.artefact.Intercept
		for j, x := range row {
			z += m.artefact.Coefficients[j] * x
		}
		p := sigmoid(z)
		out[i] = [2]float64{1 - p, p}
	}
	return out, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
