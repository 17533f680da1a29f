package model

import (
	"errors"
	"fmt"
)

// Regressor is the capability every backend exposes: fit on a feature matrix
// and predict targets for new rows.
type Regressor interface {
	Fit(features [][]float64, target []float64) error
	Predict(features [][]float64) ([]float64, error)
}

// Kind enumerates the supported regressor families. Selection is by name
// against this closed set, never by dynamic lookup.
type Kind string

const (
	// KindLasso is an L1-regularised linear model.
	KindLasso Kind = "lasso"
	// KindLightGBM is a gradient-boosted tree ensemble tuned with leaf-count
	// style hyperparameters.
	KindLightGBM Kind = "lightgbm"
	// KindXGBoost is a gradient-boosted tree ensemble tuned with depth style
	// hyperparameters.
	KindXGBoost Kind = "xgboost"
)

// ErrUnknownKind is returned for a model name outside the closed enumeration.
var ErrUnknownKind = errors.New("model: unknown regressor kind")

// ParseKind validates a model name.
func ParseKind(name string) (Kind, error) {
	switch Kind(name) {
	case KindLasso, KindLightGBM, KindXGBoost:
		return Kind(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, name)
	}
}

// New constructs a regressor of the given kind from a hyperparameter map.
// Both boosted families share the tree booster; their parameter names are
// translated in NewBoost.
func New(kind Kind, params map[string]float64) (Regressor, error) {
	switch kind {
	case KindLasso:
		return NewLasso(params), nil
	case KindLightGBM, KindXGBoost:
		return NewBoost(kind, params), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
