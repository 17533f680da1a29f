package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fxcast/internal/artifact"
)

// ErrNotConfigured indicates the registry pool was not initialised.
var ErrNotConfigured = errors.New("registry: pool not configured")

const (
	createVersionsTableSQL = `CREATE TABLE IF NOT EXISTS model_versions (
        name       TEXT        NOT NULL,
        version    INTEGER     NOT NULL,
        status     TEXT        NOT NULL,
        test_mae   DOUBLE PRECISION NOT NULL,
        trained_at TIMESTAMPTZ NOT NULL,
        payload    BYTEA       NOT NULL,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (name, version)
    );`

	insertVersionSQL = `INSERT INTO model_versions (
        name,
        version,
        status,
        test_mae,
        trained_at,
        payload
    )
    SELECT
        $1,
        COALESCE(MAX(version), 0) + 1,
        $2,
        $3,
        $4,
        $5
    FROM model_versions
    WHERE name = $1
    RETURNING name, version, status, test_mae, trained_at, created_at;`

	listVersionsSQL = `SELECT
        name,
        version,
        status,
        test_mae,
        trained_at,
        created_at
    FROM model_versions
    WHERE name = $1
    ORDER BY version DESC;`

	fetchLatestByStatusSQL = `SELECT
        name,
        version,
        status,
        test_mae,
        trained_at,
        created_at,
        payload
    FROM model_versions
    WHERE name = $1
      AND status = $2
    ORDER BY version DESC
    LIMIT 1;`
)

// PostgresStore keeps registered model versions in a model_versions table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPool configures a PostgreSQL connection pool for the registry.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	if dsn == "" {
		return nil, fmt.Errorf("registry.dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse registry dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	return pool, nil
}

// NewPostgresStore wires a pgx pool into a registry store and ensures the
// backing table exists.
func NewPostgresStore(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool}
	p, err := s.getPool()
	if err != nil {
		return nil, err
	}
	if _, err := p.Exec(ctx, createVersionsTableSQL); err != nil {
		return nil, fmt.Errorf("create model_versions table: %w", err)
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *PostgresStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *PostgresStore) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// Upload registers the artifact as the next version under the name.
func (s *PostgresStore) Upload(ctx context.Context, name, status string, a *artifact.Artifact) (Version, error) {
	pool, err := s.getPool()
	if err != nil {
		return Version{}, err
	}

	payload, err := a.Encode()
	if err != nil {
		return Version{}, err
	}

	row := pool.QueryRow(ctx, insertVersionSQL, name, status, a.TestMAE, a.TrainedAt, payload)

	var v Version
	if scanErr := row.Scan(&v.Name, &v.Version, &v.Status, &v.TestMAE, &v.TrainedAt, &v.CreatedAt); scanErr != nil {
		return Version{}, fmt.Errorf("insert model version: %w", scanErr)
	}
	return v, nil
}

// ListVersions lists every version registered under a name, newest first.
func (s *PostgresStore) ListVersions(ctx context.Context, name string) ([]Version, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listVersionsSQL, name)
	if queryErr != nil {
		return nil, fmt.Errorf("list model versions: %w", queryErr)
	}
	defer rows.Close()

	versions := make([]Version, 0)
	for rows.Next() {
		var v Version
		if err := rows.Scan(&v.Name, &v.Version, &v.Status, &v.TestMAE, &v.TrainedAt, &v.CreatedAt); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return versions, nil
}

// Fetch resolves the newest version under the name with the given status and
// decodes its artifact.
func (s *PostgresStore) Fetch(ctx context.Context, name, status string) (*artifact.Artifact, Version, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, Version{}, err
	}

	var (
		v       Version
		payload []byte
	)
	row := pool.QueryRow(ctx, fetchLatestByStatusSQL, name, status)
	if scanErr := row.Scan(&v.Name, &v.Version, &v.Status, &v.TestMAE, &v.TrainedAt, &v.CreatedAt, &payload); scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return nil, Version{}, fmt.Errorf("%w: %s (%s)", ErrNoSuchVersion, name, status)
		}
		return nil, Version{}, fmt.Errorf("fetch model version: %w", scanErr)
	}

	a, err := artifact.Decode(payload)
	if err != nil {
		return nil, Version{}, err
	}
	return a, v, nil
}

var _ Store = (*PostgresStore)(nil)
