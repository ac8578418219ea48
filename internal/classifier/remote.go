package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/pkg/logger"
)

// RemoteModel forwards rows to a model-serving sidecar, for models that can
// only be evaluated in the runtime they were serialized from. The sidecar
// answers POST /predict_proba with one [P(Low), P(High)] pair per row.
type RemoteModel struct {
	url       string
	columns   []string
	threshold float64
	client    *http.Client
}

type probaRequest struct {
	Columns []string    `json:"columns"`
	Rows    [][]float64 `json:"rows"`
}

type probaResponse struct {
	Probabilities [][]float64 `json:"probabilities"`
}

func NewRemote(url string, columns []string, timeout time.Duration) *RemoteModel {
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	logger.Info("Remote classifier configured", zap.String("url", url))

	return &RemoteModel{
		url:       strings.TrimSuffix(url, "/"),
		columns:   columns,
		threshold: 0.5,
		client:    &http.Client{Timeout: timeout},
	}
}

func (m *RemoteModel) Columns() []string {
	out := make([]string, len(m.columns))
	copy(out, m.columns)
	return out
}

func (m *RemoteModel) Predict(ctx context.Context, v features.Vector) (Prediction, error) {
	if err := CheckShape(m.columns, v); err != nil {
		return Prediction{}, err
	}

	proba, err := m.PredictProba(ctx, [][]float64{v.Values})
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Label:         labelFor(proba[0], m.threshold),
		Probabilities: proba[0],
	}, nil
}

func (m *RemoteModel) PredictProba(ctx context.Context, rows [][]float64) ([][2]float64, error) {
	if err := checkRows(len(m.columns), rows); err != nil {
		return nil, err
	}

	body, err := json.Marshal(probaRequest{Columns: m.columns, Rows: rows})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rows: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url+"/predict_proba", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model sidecar: %v: %w", err, apperr.ErrRemoteService)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, fmt.Errorf("model sidecar returned %d: %s: %w", res.StatusCode, strings.TrimSpace(string(msg)), apperr.ErrRemoteService)
	}

	var pr probaResponse
	if err := json.NewDecoder(res.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("model sidecar response: %v: %w", err, apperr.ErrRemoteService)
	}

	if len(pr.Probabilities) != len(rows) {
		return nil, fmt.Errorf("model sidecar returned %d rows for %d inputs: %w", len(pr.Probabilities), len(rows), apperr.ErrRemoteService)
	}

	out := make([][2]float64, len(rows))
	for i, p := range pr.Probabilities {
		if len(p) != 2 {
			return nil, fmt.Errorf("model sidecar returned %d classes, expected 2: %w", len(p), apperr.ErrRemoteService)
		}
		out[i] = [2]float64{p[0], p[1]}
	}

	logger.Debug("Remote probabilities received", zap.Int("rows", len(rows)))

	return out, nil
}
