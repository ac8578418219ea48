package models

import "time"

// Transaction is a recorded purchase with its estimated carbon footprint.
type Transaction struct {
	ID          int     `json:"id"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Carbon      float64 `json:"carbon"`
	Category    string  `json:"category"`
	Date        string  `json:"date"`
	Impact      string  `json:"impact"`
}

// NewTransaction is the client-supplied part of a Transaction. Nil fields
// take their defaults.
type NewTransaction struct {
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount"`
	Category    *string  `json:"category"`
	Date        *string  `json:"date"`
}

type ChartPoint struct {
	Month     string  `json:"month"`
	Footprint float64 `json:"footprint"`
	Target    float64 `json:"target"`
}

// PredictionRecord is the audit trail of one /predict call.
type PredictionRecord struct {
	ID              string    `json:"id"`
	Material        string    `json:"material"`
	Label           string    `json:"label"`
	ProbabilityLow  float64   `json:"probability_low"`
	ProbabilityHigh float64   `json:"probability_high"`
	Recommendation  string    `json:"recommendation"`
	LatencyMS       int       `json:"latency_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
