// Package classifier adapts a pre-trained two-class impact model to the
// feature vectors produced by the features package.
package classifier

import (
	"context"
	"fmt"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/features"
)

type Label string

const (
	Low  Label = "Low"
	High Label = "High"
)

// Classes is the fixed class order of every probability pair: index 0 is
// Low, index 1 is High.
var Classes = [2]Label{Low, High}

type Prediction struct {
	Label         Label
	Probabilities [2]float64
}

// Classifier is a two-class model. PredictProba evaluates a batch of rows
// laid out as Columns(); the explainer uses it to score perturbed samples.
type Classifier interface {
	Columns() []string
	Predict(ctx context.Context, v features.Vector) (Prediction, error)
	PredictProba(ctx context.Context, rows [][]float64) ([][2]float64, error)
}

// CheckShape fails with apperr.ErrInputShape unless v has exactly the
// expected columns in the expected order.
func CheckShape(expected []string, v features.Vector) error {
	if len(v.Columns) != len(expected) || len(v.Values) != len(expected) {
		return fmt.Errorf("expected %d columns, got %d columns and %d values: %w",
			len(expected), len(v.Columns), len(v.Values), apperr.ErrInputShape)
	}
	for i, c := range expected {
		if v.Columns[i] != c {
			return fmt.Errorf("column %d: expected %q, got %q: %w", i, c, v.Columns[i], apperr.ErrInputShape)
		}
	}
	return nil
}

func checkRows(width int, rows [][]float64) error {
	for i, r := range rows {
		if len(r) != width {
			return fmt.Errorf("row %d has %d values, expected %d: %w", i, len(r), width, apperr.ErrInputShape)
		}
	}
	return nil
}

func labelFor(proba [2]float64, threshold float64) Label {
	if proba[1] >= threshold {
		return High
	}
	return Low
}
