package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"fxcast/internal/artifact"
	"fxcast/internal/registry"
	"fxcast/internal/serve"
)

// ServeOptions configure model resolution for the prediction server.
type ServeOptions struct {
	ArtifactPath string
	FromRegistry bool
}

// loadArtifact resolves the serving model and a human-readable version label.
// An explicit artifact path wins; then the registry when one is configured or
// forced; then the local training artifact path.
func (a *App) loadArtifact(ctx context.Context, opts ServeOptions) (*artifact.Artifact, string, error) {
	if opts.ArtifactPath != "" {
		art, err := artifact.LoadLocal(opts.ArtifactPath)
		if err != nil {
			return nil, "", err
		}
		a.Logger.Info().Str("path", opts.ArtifactPath).Msg("model loaded from file")
		return art, "local", nil
	}

	useRegistry := opts.FromRegistry ||
		a.Config.Registry.ModelName != "" ||
		a.Config.Registry.DSN != ""
	if useRegistry {
		reg, closeReg, err := a.openRegistry(ctx)
		if err != nil {
			return nil, "", err
		}
		defer closeReg()

		status := a.Config.Registry.Status
		if status == "" {
			status = registry.StatusProduction
		}

		art, version, err := reg.Fetch(ctx, a.modelName(), status)
		if err != nil {
			return nil, "", err
		}
		a.Logger.Info().
			Str("name", version.Name).
			Int("version", version.Version).
			Str("status", version.Status).
			Msg("model loaded from registry")
		return art, fmt.Sprintf("v%d", version.Version), nil
	}

	path := a.Config.Training.ArtifactPath
	art, err := artifact.LoadLocal(path)
	if err != nil {
		return nil, "", err
	}
	a.Logger.Info().Str("path", path).Msg("model loaded from disk")
	return art, "local", nil
}

// Serve exposes the trained model over HTTP until interrupted.
func (a *App) Serve(ctx context.Context, opts ServeOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	art, version, err := a.loadArtifact(ctx, opts)
	if err != nil {
		return err
	}

	server, err := serve.NewServer(serve.Options{
		Addr:            a.Config.Serve.Addr,
		ShutdownTimeout: a.Config.Serve.ShutdownTimeout,
		ModelVersion:    version,
	}, art, a.Logger, a.Recorder)
	if err != nil {
		return err
	}
	return server.Start(ctx)
}
