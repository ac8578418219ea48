// Package features turns a /predict payload into the ordered feature vector
// the classifier was trained on.
package features

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/pkg/logger"
)

const (
	ColQuantity = "quantity_used (tons)"
	ColCarbon   = "carbon_emission (tons CO2)"
	ColWater    = "water_usage (liters)"
	ColWaste    = "waste_generated (tons)"

	// MaterialPrefix marks the one-hot material columns.
	MaterialPrefix = "good_used_"
)

// Material is one of the known categorical values of good_used.
type Material string

const (
	Cotton            Material = "Cotton"
	Glass             Material = "Glass"
	PetroleumProducts Material = "Petroleum Products"
	Plastic           Material = "Plastic"
	Steel             Material = "Steel"
	Timber            Material = "Timber"
	Wheat             Material = "Wheat"
)

var materials = []Material{Cotton, Glass, PetroleumProducts, Plastic, Steel, Timber, Wheat}

var numericColumns = []string{ColQuantity, ColCarbon, ColWater, ColWaste}

// Materials returns the known materials in one-hot column order.
func Materials() []Material {
	out := make([]Material, len(materials))
	copy(out, materials)
	return out
}

func IsKnownMaterial(name string) bool {
	for _, m := range materials {
		if string(m) == name {
			return true
		}
	}
	return false
}

// Column returns the one-hot column name of m.
func (m Material) Column() string {
	return MaterialPrefix + string(m)
}

// Columns returns the feature column names in model order: the four
// numeric columns followed by one one-hot column per material.
func Columns() []string {
	cols := make([]string, 0, len(numericColumns)+len(materials))
	cols = append(cols, numericColumns...)
	for _, m := range materials {
		cols = append(cols, m.Column())
	}
	return cols
}

// Input is the /predict request body. Pointer fields distinguish a missing
// field from a zero value.
type Input struct {
	GoodUsed       *string  `json:"good_used"`
	QuantityUsed   *float64 `json:"quantity_used (tons)"`
	CarbonEmission *float64 `json:"carbon_emission (tons CO2)"`
	WaterUsage     *float64 `json:"water_usage (liters)"`
	WasteGenerated *float64 `json:"waste_generated (tons)"`
}

// Vector is a single model row. Values are ordered as Columns().
type Vector struct {
	Columns []string
	Values  []float64
}

// Get returns the value of the named column.
func (v Vector) Get(column string) (float64, bool) {
	for i, c := range v.Columns {
		if c == column {
			return v.Values[i], true
		}
	}
	return 0, false
}

type Normalizer struct {
	strict bool
}

// NewNormalizer returns a normalizer. When strict is false an unknown
// material produces an all-zero one-hot block instead of an error.
func NewNormalizer(strict bool) *Normalizer {
	return &Normalizer{strict: strict}
}

func (n *Normalizer) Normalize(in Input) (Vector, error) {
	if in.GoodUsed == nil {
		return Vector{}, fmt.Errorf("good_used is required: %w", apperr.ErrInvalidInput)
	}

	numeric := []struct {
		name  string
		value *float64
	}{
		{ColQuantity, in.QuantityUsed},
		{ColCarbon, in.CarbonEmission},
		{ColWater, in.WaterUsage},
		{ColWaste, in.WasteGenerated},
	}

	values := make([]float64, 0, len(numericColumns)+len(materials))
	for _, f := range numeric {
		if f.value == nil {
			return Vector{}, fmt.Errorf("%s is required: %w", f.name, apperr.ErrInvalidInput)
		}
		values = append(values, *f.value)
	}

	material := *in.GoodUsed
	if !IsKnownMaterial(material) {
		if n.strict {
			return Vector{}, fmt.Errorf("%q: %w", material, apperr.ErrUnknownMaterial)
		}
		logger.Warn("Unknown material, one-hot block left empty", zap.String("good_used", material))
	}

	for _, m := range materials {
		if string(m) == material {
			values = append(values, 1)
		} else {
			values = append(values, 0)
		}
	}

	return Vector{Columns: Columns(), Values: values}, nil
}
