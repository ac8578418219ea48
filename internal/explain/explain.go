// Package explain produces local surrogate explanations of a single
// prediction: it perturbs the row, scores the perturbations with the
// classifier and fits a weighted ridge regression on P(High).
package explain

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"github.com/ecotracker/backend/internal/apperr"
	"github.com/ecotracker/backend/internal/classifier"
	"github.com/ecotracker/backend/internal/features"
	"github.com/ecotracker/backend/pkg/logger"
)

type Config struct {
	NumFeatures int
	NumSamples  int
	// KernelWidth of the exponential kernel. Zero means 0.75*sqrt(columns).
	KernelWidth float64
	// PerturbScale and MinScale set the standard deviation of continuous
	// perturbations: max(|x|*PerturbScale, MinScale).
	PerturbScale float64
	MinScale     float64
	Alpha        float64
	// Seed fixes the sampling. Zero seeds from the clock.
	Seed int64
}

func DefaultConfig() Config {
	return Config{
		NumFeatures:  10,
		NumSamples:   5000,
		PerturbScale: 0.25,
		MinScale:     1.0,
		Alpha:        1.0,
	}
}

// Contribution is a feature's signed local weight. Positive weights push
// the prediction toward High, negative toward Low, whichever class was
// predicted.
type Contribution struct {
	Feature string
	Weight  float64
}

// MarshalJSON renders the contribution as a [feature, weight] pair.
func (c Contribution) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{c.Feature, c.Weight})
}

func (c *Contribution) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("contribution must be a [feature, weight] pair, got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &c.Feature); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &c.Weight)
}

type Explanation struct {
	// Contributions ranked by descending absolute weight.
	Contributions []Contribution
	Intercept     float64
	// LocalPrediction is the surrogate's P(High) at the explained row.
	LocalPrediction float64
	// ModelPrediction is the classifier's P(High) at the explained row.
	ModelPrediction float64
	// Score is the weighted R² of the surrogate fit.
	Score float64
}

type Explainer struct {
	model classifier.Classifier
	cfg   Config
}

func New(model classifier.Classifier, cfg Config) *Explainer {
	def := DefaultConfig()
	if cfg.NumFeatures <= 0 {
		cfg.NumFeatures = def.NumFeatures
	}
	if cfg.NumSamples <= 1 {
		cfg.NumSamples = def.NumSamples
	}
	if cfg.PerturbScale <= 0 {
		cfg.PerturbScale = def.PerturbScale
	}
	if cfg.MinScale <= 0 {
		cfg.MinScale = def.MinScale
	}
	if cfg.Alpha <= 0 {
		cfg.Alpha = def.Alpha
	}
	if cfg.KernelWidth <= 0 {
		cfg.KernelWidth = 0.75 * math.Sqrt(float64(len(model.Columns())))
	}

	return &Explainer{model: model, cfg: cfg}
}

func (e *Explainer) Config() Config {
	return e.cfg
}

func (e *Explainer) Explain(ctx context.Context, v features.Vector) (*Explanation, error) {
	columns := e.model.Columns()
	if err := classifier.CheckShape(columns, v); err != nil {
		return nil, err
	}

	seed := e.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	layout := newLayout(columns, v.Values, e.cfg)
	samples := layout.sample(rng, e.cfg.NumSamples)

	proba, err := e.model.PredictProba(ctx, samples)
	if err != nil {
		return nil, fmt.Errorf("failed to score perturbed samples: %w", err)
	}

	target := make([]float64, len(proba))
	for i, p := range proba {
		target[i] = p[1]
	}

	rep := layout.represent(samples)
	weights := layout.kernel(rep, e.cfg.KernelWidth)

	fit, err := ridge(rep, target, weights, e.cfg.Alpha)
	if err != nil {
		return nil, fmt.Errorf("surrogate fit: %v: %w", err, apperr.ErrExplanation)
	}

	contributions := make([]Contribution, len(columns))
	for j, c := range columns {
		contributions[j] = Contribution{Feature: c, Weight: fit.coef[j]}
	}
	sort.SliceStable(contributions, func(a, b int) bool {
		return math.Abs(contributions[a].Weight) > math.Abs(contributions[b].Weight)
	})
	if len(contributions) > e.cfg.NumFeatures {
		contributions = contributions[:e.cfg.NumFeatures]
	}

	exp := &Explanation{
		Contributions:   contributions,
		Intercept:       fit.intercept,
		LocalPrediction: fit.predict(rep[0]),
		ModelPrediction: target[0],
		Score:           fit.score,
	}

	logger.Debug("Explanation computed",
		zap.Int("samples", len(samples)),
		zap.Float64("score", exp.Score),
		zap.Float64("local_prediction", exp.LocalPrediction),
		zap.Float64("model_prediction", exp.ModelPrediction),
	)

	return exp, nil
}

// layout describes how each column is perturbed and represented. One-hot
// columns sharing the material prefix are resampled together so every
// sample still names a single material.
type layout struct {
	row     []float64
	scale   []float64
	onehot  []bool
	choices int
}

func newLayout(columns []string, row []float64, cfg Config) *layout {
	l := &layout{
		row:    append([]float64(nil), row...),
		scale:  make([]float64, len(columns)),
		onehot: make([]bool, len(columns)),
	}
	for j, c := range columns {
		if strings.HasPrefix(c, features.MaterialPrefix) {
			l.onehot[j] = true
			l.choices++
			continue
		}
		l.scale[j] = math.Max(math.Abs(row[j])*cfg.PerturbScale, cfg.MinScale)
	}
	return l
}

// sample returns n rows; the first is the explained row itself.
func (l *layout) sample(rng *rand.Rand, n int) [][]float64 {
	out := make([][]float64, n)
	out[0] = append([]float64(nil), l.row...)

	for i := 1; i < n; i++ {
		s := make([]float64, len(l.row))
		hot := -1
		if l.choices > 0 {
			hot = rng.Intn(l.choices)
		}
		k := 0
		for j, x := range l.row {
			if l.onehot[j] {
				if k == hot {
					s[j] = 1
				}
				k++
				continue
			}
			s[j] = x + rng.NormFloat64()*l.scale[j]
		}
		out[i] = s
	}
	return out
}

// represent maps samples to the interpretable space: continuous columns as
// z-scores around the row, one-hot columns unchanged.
func (l *layout) represent(samples [][]float64) [][]float64 {
	out := make([][]float64, len(samples))
	for i, s := range samples {
		r := make([]float64, len(s))
		for j, x := range s {
			if l.onehot[j] {
				r[j] = x
			} else {
				r[j] = (x - l.row[j]) / l.scale[j]
			}
		}
		out[i] = r
	}
	return out
}

func (l *layout) kernel(rep [][]float64, width float64) []float64 {
	origin := rep[0]
	out := make([]float64, len(rep))
	for i, r := range rep {
		var d2 float64
		for j := range r {
			diff := r[j] - origin[j]
			d2 += diff * diff
		}
		out[i] = math.Sqrt(math.Exp(-d2 / (width * width)))
	}
	return out
}

type surrogate struct {
	intercept float64
	coef      []float64
	score     float64
}

func (s surrogate) predict(x []float64) float64 {
	y := s.intercept
	for j, v := range x {
		y += s.coef[j] * v
	}
	return y
}

// ridge solves (XᵀWX + αI)β = XᵀWy with an unpenalised intercept.
func ridge(x [][]float64, y, w []float64, alpha float64) (surrogate, error) {
	n := len(x)
	if n == 0 {
		return surrogate{}, fmt.Errorf("no samples")
	}
	p := len(x[0])
	k := p + 1

	design := mat.NewDense(n, k, nil)
	for i, row := range x {
		design.Set(i, 0, 1)
		for j, v := range row {
			design.Set(i, j+1, v)
		}
	}

	weighted := mat.NewDense(n, k, nil)
	weighted.Apply(func(i, _ int, v float64) float64 { return v * w[i] }, design)

	var a mat.Dense
	a.Mul(design.T(), weighted)
	for j := 1; j < k; j++ {
		a.Set(j, j, a.At(j, j)+alpha)
	}

	var b mat.VecDense
	b.MulVec(weighted.T(), mat.NewVecDense(n, y))

	var beta mat.VecDense
	if err := beta.SolveVec(&a, &b); err != nil {
		return surrogate{}, err
	}

	s := surrogate{intercept: beta.AtVec(0), coef: make([]float64, p)}
	for j := 0; j < p; j++ {
		s.coef[j] = beta.AtVec(j + 1)
	}
	s.score = weightedR2(s, x, y, w)

	return s, nil
}

func weightedR2(s surrogate, x [][]float64, y, w []float64) float64 {
	var sw, mean float64
	for i := range y {
		sw += w[i]
		mean += w[i] * y[i]
	}
	if sw == 0 {
		return 0
	}
	mean /= sw

	var res, tot float64
	for i := range y {
		d := y[i] - s.predict(x[i])
		res += w[i] * d * d
		m := y[i] - mean
		tot += w[i] * m * m
	}
	if tot == 0 {
		return 1
	}
	return 1 - res/tot
}
