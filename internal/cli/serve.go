package cli

import (
	"github.com/spf13/cobra"

	"fxcast/internal/app"
)

var (
	serveArtifactPath string
	serveFromRegistry bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the trained model over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ServeOptions{
			ArtifactPath: serveArtifactPath,
			FromRegistry: serveFromRegistry,
		}
		return getApp().Serve(cmd.Context(), opts)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveArtifactPath, "artifact", "", "Serve a specific artifact file instead of resolving one")
	serveCmd.Flags().BoolVar(&serveFromRegistry, "from-registry", false, "Force loading the model from the configured registry")
}
