package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxcast/internal/dataset"
	"fxcast/internal/features"
	"fxcast/internal/model"
)

// Artifact is the serialized pipeline: everything needed to reproduce the
// enrichment step and score new windows with the fitted model.
type Artifact struct {
	Pair          string             `json:"pair"`
	Lookback      int                `json:"lookback"`
	StepSize      int                `json:"step_size"`
	PctChangeDays []int              `json:"pct_change_days"`
	Preprocessing map[string]float64 `json:"preprocessing"`
	ModelKind     model.Kind         `json:"model_kind"`
	ModelParams   map[string]float64 `json:"model_params"`
	Features      []string           `json:"features"`
	TestMAE       float64            `json:"test_mae"`
	TrainedAt     time.Time          `json:"trained_at"`

	// Exactly one of these carries the fitted model, by kind.
	Lasso *model.Lasso `json:"lasso,omitempty"`
	Boost *model.Boost `json:"boost,omitempty"`
}

// SetModel stores a fitted regressor under the matching field.
func (a *Artifact) SetModel(reg model.Regressor) error {
	switch m := reg.(type) {
	case *model.Lasso:
		a.Lasso = m
	case *model.Boost:
		a.Boost = m
	default:
		return fmt.Errorf("artifact: unsupported regressor %T", reg)
	}
	return nil
}

// Model returns the fitted regressor.
func (a *Artifact) Model() (model.Regressor, error) {
	switch {
	case a.Lasso != nil:
		return a.Lasso, nil
	case a.Boost != nil:
		return a.Boost, nil
	default:
		return nil, errors.New("artifact: no fitted model present")
	}
}

// Enrichment rebuilds the feature pipeline the model was trained with.
func (a *Artifact) Enrichment() []features.Transformer {
	rsiLength := int(a.Preprocessing["rsi_length"])
	emaLength := int(a.Preprocessing["ema_length"])
	return features.Pipeline(a.PctChangeDays, rsiLength, emaLength)
}

// PredictTable enriches a copy of the base window table with the artifact's
// pipeline and scores it with the fitted model, using the feature layout
// captured at fit time.
func (a *Artifact) PredictTable(t *dataset.Table) ([]float64, error) {
	reg, err := a.Model()
	if err != nil {
		return nil, err
	}

	enriched := t.Clone()
	if err := features.Apply(enriched, a.Enrichment()...); err != nil {
		return nil, err
	}
	return reg.Predict(enriched.MatrixFor(a.Features))
}

// Encode serializes the artifact as JSON.
func (a *Artifact) Encode() ([]byte, error) {
	return json.MarshalIndent(a, "", "  ")
}

// Decode parses a serialized artifact.
func Decode(payload []byte) (*Artifact, error) {
	var a Artifact
	if err := json.Unmarshal(payload, &a); err != nil {
		return nil, fmt.Errorf("artifact: decode: %w", err)
	}
	if _, err := a.Model(); err != nil {
		return nil, err
	}
	return &a, nil
}

// SaveLocal writes the artifact to disk, creating parent directories.
func (a *Artifact) SaveLocal(path string) error {
	payload, err := a.Encode()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, payload, 0o644)
}

// LoadLocal reads an artifact from disk.
func LoadLocal(path string) (*Artifact, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(payload)
}
