// Package transactions records purchases and estimates their carbon
// footprint from a fixed per-material emission factor.
package transactions

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/internal/storage/models"
)

const (
	ImpactLow    = "low"
	ImpactMedium = "medium"
	ImpactHigh   = "high"

	DefaultCategory = string(features.Wheat)
	DefaultFactor   = 0.1
	DateLayout      = "2006-01-02"

	// ChartTarget is the monthly footprint goal in tons CO2.
	ChartTarget = 2.0
)

var carbonFactors = map[string]float64{
	string(features.Cotton):            0.08,
	string(features.Glass):             0.15,
	string(features.PetroleumProducts): 0.8,
	string(features.Plastic):           0.6,
	string(features.Steel):             0.5,
	string(features.Timber):            0.1,
	string(features.Wheat):             0.05,
}

// Store is a transaction log. Implementations are safe for concurrent use.
type Store interface {
	Add(ctx context.Context, in models.NewTransaction) (models.Transaction, error)
	List(ctx context.Context) ([]models.Transaction, error)
}

// CarbonFactor returns the emission factor of category, DefaultFactor when
// the category is not a known material.
func CarbonFactor(category string) float64 {
	if f, ok := carbonFactors[category]; ok {
		return f
	}
	return DefaultFactor
}

func ImpactLevel(carbon float64) string {
	switch {
	case carbon < 0.1:
		return ImpactLow
	case carbon < 0.3:
		return ImpactMedium
	default:
		return ImpactHigh
	}
}

// Build fills defaults and derives carbon and impact. The ID is left to
// the store.
func Build(in models.NewTransaction, now time.Time) models.Transaction {
	t := models.Transaction{
		Category: DefaultCategory,
		Date:     now.Format(DateLayout),
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Amount != nil {
		t.Amount = *in.Amount
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.Date != nil {
		t.Date = *in.Date
	}

	t.Carbon = t.Amount * CarbonFactor(t.Category)
	t.Impact = ImpactLevel(t.Carbon)
	return t
}

var cannedChart = []models.ChartPoint{
	{Month: "Jan", Footprint: 3.2, Target: 2.5},
	{Month: "Feb", Footprint: 2.9, Target: 2.4},
	{Month: "Mar", Footprint: 2.7, Target: 2.3},
	{Month: "Apr", Footprint: 2.5, Target: 2.2},
	{Month: "May", Footprint: 2.8, Target: 2.1},
	{Month: "Jun", Footprint: 2.4, Target: 2.0},
}

// Chart aggregates carbon (kg) into monthly footprints in tons, ordered by
// first appearance. With no transactions it returns a fixed demo series.
// Transactions whose date has no valid month are skipped.
func Chart(transactions []models.Transaction) []models.ChartPoint {
	if len(transactions) == 0 {
		out := make([]models.ChartPoint, len(cannedChart))
		copy(out, cannedChart)
		return out
	}

	points := []models.ChartPoint{}
	index := map[string]int{}
	for _, t := range transactions {
		month, ok := monthOf(t.Date)
		if !ok {
			continue
		}
		i, seen := index[month]
		if !seen {
			i = len(points)
			index[month] = i
			points = append(points, models.ChartPoint{Month: month, Target: ChartTarget})
		}
		points[i].Footprint += t.Carbon / 1000
	}
	return points
}

// monthOf reads the month from the second dash-separated part of a
// YYYY-MM-DD date.
func monthOf(date string) (string, bool) {
	parts := strings.Split(date, "-")
	if len(parts) < 2 {
		return "", false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return "", false
	}
	return time.Month(m).String()[:3], true
}
