package training

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"fxcast/internal/artifact"
	"fxcast/internal/dataset"
	"fxcast/internal/features"
	"fxcast/internal/market"
	"fxcast/internal/model"
	"fxcast/internal/rates"
)

// Options configures a training run. SkipSearch bypasses the hyperparameter
// search and fits with default parameters.
type Options struct {
	Pair          market.Pair
	Lookback      int
	StepSize      int
	PctChangeDays []int
	Kind          model.Kind
	Trials        int
	Folds         int
	TestFraction  float64
	Seed          int64
	SkipSearch    bool
	Logger        zerolog.Logger
}

// Default preprocessing lengths used when the search is skipped.
const (
	defaultRSILength = 14
	defaultEMALength = 9
)

// Trainer builds a fitted pipeline artifact from a rate series: windowing,
// hyperparameter search on the chronological head, a final refit, and a
// held-out MAE on the tail.
type Trainer struct {
	opts Options
}

// NewTrainer validates the options and returns a trainer.
func NewTrainer(opts Options) (*Trainer, error) {
	if opts.Lookback <= 0 {
		return nil, fmt.Errorf("training: lookback must be positive, got %d", opts.Lookback)
	}
	if opts.StepSize <= 0 {
		opts.StepSize = 1
	}
	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.1
	}
	return &Trainer{opts: opts}, nil
}

// Run trains on the series and returns the artifact. The tail TestFraction of
// windows is never seen during search or the final fit.
func (t *Trainer) Run(ctx context.Context, series *rates.Series) (*artifact.Artifact, error) {
	table, err := dataset.MakeWindows(*series, t.opts.Lookback, t.opts.StepSize)
	if err != nil {
		return nil, err
	}

	n := table.NumRows()
	testStart := n - int(float64(n)*t.opts.TestFraction)
	if testStart <= 0 || testStart >= n {
		return nil, fmt.Errorf("training: %d windows cannot support a held-out split", n)
	}

	trainTable, err := table.Slice(0, testStart)
	if err != nil {
		return nil, err
	}
	testTable, err := table.Slice(testStart, n)
	if err != nil {
		return nil, err
	}

	logger := t.opts.Logger.With().
		Str("component", "trainer").
		Str("pair", t.opts.Pair.String()).
		Str("model", string(t.opts.Kind)).
		Logger()
	logger.Info().Int("train_rows", trainTable.NumRows()).Int("test_rows", testTable.NumRows()).Msg("windows split")

	var best *SearchResult
	if t.opts.SkipSearch {
		best = &SearchResult{
			Preprocessing: map[string]float64{
				paramRSILength: defaultRSILength,
				paramEMALength: defaultEMALength,
			},
			ModelParams: map[string]float64{},
		}
		logger.Info().Msg("search skipped; fitting with default parameters")
	} else {
		searcher := &Searcher{
			Kind:          t.opts.Kind,
			Trials:        t.opts.Trials,
			Folds:         t.opts.Folds,
			PctChangeDays: t.opts.PctChangeDays,
			Seed:          t.opts.Seed,
			Logger:        t.opts.Logger,
		}
		best, err = searcher.Search(ctx, trainTable)
		if err != nil {
			return nil, err
		}
	}

	a := &artifact.Artifact{
		Pair:          t.opts.Pair.String(),
		Lookback:      t.opts.Lookback,
		StepSize:      t.opts.StepSize,
		PctChangeDays: append([]int(nil), t.opts.PctChangeDays...),
		Preprocessing: best.Preprocessing,
		ModelKind:     t.opts.Kind,
		ModelParams:   best.ModelParams,
		TrainedAt:     time.Now().UTC(),
	}

	if err := features.Apply(trainTable, a.Enrichment()...); err != nil {
		return nil, err
	}
	if err := features.Apply(testTable, a.Enrichment()...); err != nil {
		return nil, err
	}
	a.Features = trainTable.Columns()

	reg, err := model.New(t.opts.Kind, best.ModelParams)
	if err != nil {
		return nil, err
	}
	if err := reg.Fit(trainTable.Matrix(), trainTable.Target()); err != nil {
		return nil, err
	}
	if err := a.SetModel(reg); err != nil {
		return nil, err
	}

	pred, err := reg.Predict(testTable.MatrixFor(a.Features))
	if err != nil {
		return nil, err
	}
	a.TestMAE = MeanAbsoluteError(pred, testTable.Target())

	logger.Info().Float64("test_mae", a.TestMAE).Float64("search_mae", best.Score).Msg("training finished")
	return a, nil
}
