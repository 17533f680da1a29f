package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"fxcast/internal/artifact"
)

// LocalStore keeps registered versions as files under a directory, one
// subdirectory per model name and one v{N}_{status}.json file per version.
// It serves as the registry when no database is configured.
type LocalStore struct {
	dir string
}

// NewLocalStore builds a file-backed registry rooted at dir.
func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("registry.dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &LocalStore{dir: dir}, nil
}

func versionFile(version int, status string) string {
	return fmt.Sprintf("v%d_%s.json", version, status)
}

// parseVersionFile reads the version number and status back out of a
// v{N}_{status}.json file name.
func parseVersionFile(name string) (int, string, bool) {
	base := strings.TrimSuffix(name, ".json")
	if base == name || !strings.HasPrefix(base, "v") {
		return 0, "", false
	}
	num, status, found := strings.Cut(base[1:], "_")
	if !found {
		return 0, "", false
	}
	version, err := strconv.Atoi(num)
	if err != nil || version < 1 {
		return 0, "", false
	}
	return version, status, true
}

func (s *LocalStore) versions(name string) ([]Version, error) {
	entries, err := os.ReadDir(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	out := make([]Version, 0, len(entries))
	for _, entry := range entries {
		version, status, ok := parseVersionFile(entry.Name())
		if !ok {
			continue
		}
		v := Version{Name: name, Version: version, Status: status}
		if info, err := entry.Info(); err == nil {
			v.CreatedAt = info.ModTime().UTC()
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version > out[j].Version })
	return out, nil
}

// Upload writes the artifact as the next version under the name.
func (s *LocalStore) Upload(ctx context.Context, name, status string, a *artifact.Artifact) (Version, error) {
	if err := ctx.Err(); err != nil {
		return Version{}, err
	}

	existing, err := s.versions(name)
	if err != nil {
		return Version{}, err
	}
	next := 1
	if len(existing) > 0 {
		next = existing[0].Version + 1
	}

	path := filepath.Join(s.dir, name, versionFile(next, status))
	if err := a.SaveLocal(path); err != nil {
		return Version{}, err
	}

	return Version{
		Name:      name,
		Version:   next,
		Status:    status,
		TestMAE:   a.TestMAE,
		TrainedAt: a.TrainedAt,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// ListVersions lists every version registered under a name, newest first.
func (s *LocalStore) ListVersions(ctx context.Context, name string) ([]Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	versions, err := s.versions(name)
	if err != nil {
		return nil, err
	}
	for i, v := range versions {
		a, loadErr := artifact.LoadLocal(filepath.Join(s.dir, name, versionFile(v.Version, v.Status)))
		if loadErr != nil {
			return nil, loadErr
		}
		versions[i].TestMAE = a.TestMAE
		versions[i].TrainedAt = a.TrainedAt
	}
	return versions, nil
}

// Fetch resolves the newest version under the name with the given status.
func (s *LocalStore) Fetch(ctx context.Context, name, status string) (*artifact.Artifact, Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, Version{}, err
	}

	versions, err := s.versions(name)
	if err != nil {
		return nil, Version{}, err
	}
	for _, v := range versions {
		if v.Status != status {
			continue
		}
		a, loadErr := artifact.LoadLocal(filepath.Join(s.dir, name, versionFile(v.Version, v.Status)))
		if loadErr != nil {
			return nil, Version{}, loadErr
		}
		v.TestMAE = a.TestMAE
		v.TrainedAt = a.TrainedAt
		return a, v, nil
	}
	return nil, Version{}, fmt.Errorf("%w: %s (%s)", ErrNoSuchVersion, name, status)
}

var _ Store = (*LocalStore)(nil)
