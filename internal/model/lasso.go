package model

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Lasso is an L1-regularised linear regressor fitted by coordinate descent on
// standardized features.
type Lasso struct {
	Alpha   float64   `json:"alpha"`
	MaxIter int       `json:"max_iter"`
	Tol     float64   `json:"tol"`
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
	Means   []float64 `json:"means"`
	Scales  []float64 `json:"scales"`
}

// NewLasso builds a lasso from a hyperparameter map; "alpha" is the only
// sampled parameter, the rest are solver settings.
func NewLasso(params map[string]float64) *Lasso {
	alpha := params["alpha"]
	if alpha <= 0 {
		alpha = 0.1
	}
	return &Lasso{Alpha: alpha, MaxIter: 1000, Tol: 1e-6}
}

// Fit estimates the weights by cyclic coordinate descent.
func (l *Lasso) Fit(features [][]float64, target []float64) error {
	n := len(features)
	if n == 0 || n != len(target) {
		return errors.New("lasso: empty or mismatched training data")
	}
	p := len(features[0])
	if p == 0 {
		return errors.New("lasso: no feature columns")
	}

	cols := toColumns(features, p)
	l.Means = make([]float64, p)
	l.Scales = make([]float64, p)
	for j, col := range cols {
		l.Means[j] = stat.Mean(col, nil)
		sd := stat.StdDev(col, nil)
		if sd == 0 || math.IsNaN(sd) {
			sd = 1
		}
		l.Scales[j] = sd
		for i := range col {
			col[i] = (col[i] - l.Means[j]) / sd
		}
	}

	yMean := stat.Mean(target, nil)
	residual := make([]float64, n)
	for i := range residual {
		residual[i] = target[i] - yMean
	}

	l.Weights = make([]float64, p)
	l.Bias = yMean

	// Per-column sum of squares; standardized columns give ~n each, but keep
	// the exact value for constant columns.
	norms := make([]float64, p)
	for j, col := range cols {
		norms[j] = floats.Dot(col, col)
		if norms[j] == 0 {
			norms[j] = 1
		}
	}

	threshold := l.Alpha * float64(n)
	for iter := 0; iter < l.MaxIter; iter++ {
		maxDelta := 0.0
		for j, col := range cols {
			old := l.Weights[j]
			// rho is the correlation of column j with the residual, with the
			// column's own contribution added back.
			rho := floats.Dot(col, residual) + old*norms[j]
			updated := softThreshold(rho, threshold) / norms[j]
			if updated != old {
				delta := updated - old
				floats.AddScaled(residual, -delta, col)
				l.Weights[j] = updated
				if d := math.Abs(delta); d > maxDelta {
					maxDelta = d
				}
			}
		}
		if maxDelta < l.Tol {
			break
		}
	}
	return nil
}

// Predict applies the fitted weights to new rows.
func (l *Lasso) Predict(features [][]float64) ([]float64, error) {
	if l.Weights == nil {
		return nil, errors.New("lasso: model not fitted")
	}
	out := make([]float64, len(features))
	for i, row := range features {
		if len(row) != len(l.Weights) {
			return nil, errors.New("lasso: feature width mismatch")
		}
		sum := l.Bias
		for j, v := range row {
			sum += l.Weights[j] * (v - l.Means[j]) / l.Scales[j]
		}
		out[i] = sum
	}
	return out, nil
}

func softThreshold(v, threshold float64) float64 {
	switch {
	case v > threshold:
		return v - threshold
	case v < -threshold:
		return v + threshold
	default:
		return 0
	}
}

func toColumns(rows [][]float64, p int) [][]float64 {
	cols := make([][]float64, p)
	for j := range cols {
		cols[j] = make([]float64, len(rows))
		for i, row := range rows {
			cols[j][i] = row[j]
		}
	}
	return cols
}

var _ Regressor = (*Lasso)(nil)
