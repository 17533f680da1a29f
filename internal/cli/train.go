package cli

import (
	"github.com/spf13/cobra"

	"fxcast/internal/app"
)

var (
	trainModel  string
	trainTrials int
	trainNoTune bool
	trainUpload bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Tune and fit a forecasting model on the cached series",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.TrainOptions{
			Model:  trainModel,
			Trials: trainTrials,
			NoTune: trainNoTune,
			Upload: trainUpload,
		}
		return getApp().Train(cmd.Context(), opts)
	},
}

func init() {
	trainCmd.Flags().StringVar(&trainModel, "model", "", "Model family: lasso, lightgbm, or xgboost (defaults to config)")
	trainCmd.Flags().IntVar(&trainTrials, "trials", 0, "Hyperparameter search trials (defaults to config)")
	trainCmd.Flags().BoolVar(&trainNoTune, "no-tune", false, "Skip the search and fit with default parameters")
	trainCmd.Flags().BoolVar(&trainUpload, "upload", false, "Register the trained model in the configured registry")
}
