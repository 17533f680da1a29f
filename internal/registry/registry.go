package registry

import (
	"context"
	"errors"
	"time"

	"fxcast/internal/artifact"
)

// Statuses a registered model version can carry. Serving resolves "the model"
// as the newest version of a name with the wanted status.
const (
	StatusProduction = "production"
	StatusStaging    = "staging"
	StatusArchived   = "archived"
)

// ErrNoSuchVersion indicates that no registered version matches the requested
// name and status.
var ErrNoSuchVersion = errors.New("registry: no such model version")

// Version describes one registered model version. Payload carries the encoded
// artifact.
type Version struct {
	Name      string
	Version   int
	Status    string
	TestMAE   float64
	TrainedAt time.Time
	CreatedAt time.Time
}

// Store is a versioned model registry. Upload assigns the next version number
// under the name; Fetch resolves the newest version with the given status.
type Store interface {
	Upload(ctx context.Context, name, status string, a *artifact.Artifact) (Version, error)
	ListVersions(ctx context.Context, name string) ([]Version, error)
	Fetch(ctx context.Context, name, status string) (*artifact.Artifact, Version, error)
}
