package app

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"fxcast/internal/model"
	"fxcast/internal/registry"
	"fxcast/internal/training"
)

// Train refreshes the cached series, runs the hyperparameter search, and
// persists the resulting artifact. With Upload set, the artifact is also
// registered under the configured model name and status.
func (a *App) Train(ctx context.Context, opts TrainOptions) error {
	pair, err := a.Config.Pair()
	if err != nil {
		return err
	}
	kind, err := a.Config.ModelKind()
	if err != nil {
		return err
	}
	if opts.Model != "" {
		kind, err = model.ParseKind(opts.Model)
		if err != nil {
			return err
		}
	}
	trials := a.Config.Training.Trials
	if opts.Trials > 0 {
		trials = opts.Trials
	}

	st, err := a.newStore()
	if err != nil {
		return err
	}
	series, err := st.Refresh(ctx)
	if err != nil {
		return err
	}

	trainer, err := training.NewTrainer(training.Options{
		Pair:          pair,
		Lookback:      a.Config.Training.Lookback,
		StepSize:      a.Config.Training.StepSize,
		PctChangeDays: a.Config.Training.PctChangeDays,
		Kind:          kind,
		Trials:        trials,
		Folds:         a.Config.Training.Folds,
		Seed:          a.Config.Training.Seed,
		SkipSearch:    opts.NoTune,
		Logger:        a.Logger,
	})
	if err != nil {
		return err
	}

	art, err := trainer.Run(ctx, &series)
	if err != nil {
		return err
	}

	path := a.Config.Training.ArtifactPath
	if err := art.SaveLocal(path); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	a.Logger.Info().Str("path", path).Float64("test_mae", art.TestMAE).Msg("artifact saved")

	if !opts.Upload {
		return nil
	}

	reg, closeReg, err := a.openRegistry(ctx)
	if err != nil {
		return err
	}
	defer closeReg()

	status := a.Config.Registry.Status
	if status == "" {
		status = registry.StatusProduction
	}

	var version registry.Version
	upload := func() error {
		v, uerr := reg.Upload(ctx, a.modelName(), status, art)
		if uerr != nil {
			return uerr
		}
		version = v
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	if err := backoff.Retry(upload, policy); err != nil {
		return fmt.Errorf("upload to registry: %w", err)
	}

	a.Logger.Info().
		Str("name", version.Name).
		Int("version", version.Version).
		Str("status", version.Status).
		Msg("model registered")
	return nil
}
