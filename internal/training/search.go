package training

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"fxcast/internal/dataset"
	"fxcast/internal/features"
	"fxcast/internal/model"
)

// DefaultFolds is the number of forward-chaining splits used by the search.
const DefaultFolds = 5

// preprocessing parameter names; the prefix partitions the sampled set.
const (
	paramRSILength = "rsi_length"
	paramEMALength = "ema_length"
)

// SearchResult carries the best trial's parameters, partitioned into
// preprocessing and model sets by name prefix.
type SearchResult struct {
	Preprocessing map[string]float64
	ModelParams   map[string]float64
	Score         float64
	Trial         int
}

// Searcher runs random hyperparameter search with forward-chaining
// cross-validation, minimizing the mean fold MAE.
type Searcher struct {
	Kind          model.Kind
	Trials        int
	Folds         int
	PctChangeDays []int
	Seed          int64
	Logger        zerolog.Logger
}

// Search evaluates Trials sampled parameter sets over the given window table
// and returns the best. Ties break to the earliest trial.
func (s *Searcher) Search(ctx context.Context, table *dataset.Table) (*SearchResult, error) {
	trials := s.Trials
	if trials <= 0 {
		trials = 10
	}
	folds := s.Folds
	if folds <= 0 {
		folds = DefaultFolds
	}

	splits, err := TimeSeriesSplit(table.NumRows(), folds)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(s.Seed))
	logger := s.Logger.With().Str("component", "search").Str("model", string(s.Kind)).Logger()

	best := &SearchResult{Score: math.Inf(1), Trial: -1}
	for trial := 0; trial < trials; trial++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		params := s.sample(rng)
		score, err := s.scoreTrial(table, splits, params)
		if err != nil {
			return nil, fmt.Errorf("trial %d: %w", trial, err)
		}

		logger.Info().Int("trial", trial).Float64("mean_mae", score).Msg("trial scored")

		if score < best.Score {
			pre, mod := Partition(params)
			best = &SearchResult{Preprocessing: pre, ModelParams: mod, Score: score, Trial: trial}
		}
	}

	if best.Trial < 0 {
		return nil, fmt.Errorf("training: no successful trial out of %d", trials)
	}

	logger.Info().Int("best_trial", best.Trial).Float64("best_mae", best.Score).Msg("search finished")
	return best, nil
}

func (s *Searcher) sample(rng *rand.Rand) map[string]float64 {
	params := map[string]float64{
		paramRSILength: float64(intBetween(rng, 5, 20)),
		paramEMALength: float64(intBetween(rng, 5, 30)),
	}

	switch s.Kind {
	case model.KindLasso:
		params["alpha"] = logUniform(rng, 0.01, 1.0)
	case model.KindLightGBM:
		params["num_leaves"] = float64(intBetween(rng, 2, 256))
		params["feature_fraction"] = uniform(rng, 0.2, 1.0)
		params["bagging_fraction"] = uniform(rng, 0.2, 1.0)
		params["min_child_samples"] = float64(intBetween(rng, 3, 100))
	case model.KindXGBoost:
		params["max_depth"] = float64(intBetween(rng, 1, 10))
		params["eta"] = uniform(rng, 0.01, 0.3)
		params["colsample_bytree"] = uniform(rng, 0.2, 1.0)
		params["subsample"] = uniform(rng, 0.2, 1.0)
	}
	return params
}

// scoreTrial re-runs enrichment with the trial's preprocessing lengths on
// each fold slice, fits the candidate model per fold, and averages the fold
// MAEs.
func (s *Searcher) scoreTrial(table *dataset.Table, splits []Fold, params map[string]float64) (float64, error) {
	pre, modelParams := Partition(params)
	pipeline := features.Pipeline(s.PctChangeDays, int(pre[paramRSILength]), int(pre[paramEMALength]))

	total := 0.0
	for _, fold := range splits {
		trainSlice, err := table.Slice(0, fold.TrainEnd)
		if err != nil {
			return 0, err
		}
		valSlice, err := table.Slice(fold.TrainEnd, fold.ValEnd)
		if err != nil {
			return 0, err
		}

		if err := features.Apply(trainSlice, pipeline...); err != nil {
			return 0, err
		}
		if err := features.Apply(valSlice, pipeline...); err != nil {
			return 0, err
		}

		reg, err := model.New(s.Kind, modelParams)
		if err != nil {
			return 0, err
		}
		if err := reg.Fit(trainSlice.Matrix(), trainSlice.Target()); err != nil {
			return 0, err
		}

		pred, err := reg.Predict(valSlice.MatrixFor(trainSlice.Columns()))
		if err != nil {
			return 0, err
		}
		total += MeanAbsoluteError(pred, valSlice.Target())
	}
	return total / float64(len(splits)), nil
}

// Partition splits a sampled parameter set into preprocessing and model
// parameters by name prefix.
func Partition(params map[string]float64) (preprocessing, modelParams map[string]float64) {
	preprocessing = make(map[string]float64)
	modelParams = make(map[string]float64)
	for name, value := range params {
		if strings.HasPrefix(name, "rsi") || strings.HasPrefix(name, "ema") {
			preprocessing[name] = value
		} else {
			modelParams[name] = value
		}
	}
	return preprocessing, modelParams
}

func intBetween(rng *rand.Rand, lo, hi int) int {
	return lo + rng.Intn(hi-lo+1)
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func logUniform(rng *rand.Rand, lo, hi float64) float64 {
	return math.Exp(uniform(rng, math.Log(lo), math.Log(hi)))
}
