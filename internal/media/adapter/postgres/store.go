// Package postgres implements the resource store against the media_files table.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mediagate/internal/domain"
)

// Store is a ResourceStore backed by a pgx connection pool. Reads are
// plain, non-transactional single statements: delivery observes
// metadata updates made by the upload subsystem eventually, and no
// transaction spans a request.
type Store struct {
	pool *pgxpool.Pool
}

// New connects a pool to databaseURL and verifies it with a ping.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Lookup implements media.ResourceStore. Soft-deleted rows are filtered
// here so callers never see them.
func (s *Store) Lookup(ctx context.Context, path string) (domain.Resource, error) {
	const query = `
		SELECT id, path, size, content_type, visibility, class, COALESCE(owner_id, '')
		FROM media_files
		WHERE path = $1 AND deleted_at IS NULL`

	var (
		res        domain.Resource
		visibility string
		class      string
	)
	err := s.pool.QueryRow(ctx, query, path).Scan(
		&res.ID, &res.Path, &res.Size, &res.ContentType, &visibility, &class, &res.OwnerID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Resource{}, domain.ErrNotFound
		}
		return domain.Resource{}, fmt.Errorf("querying resource %q: %w", path, err)
	}

	res.Visibility, err = domain.ParseVisibility(visibility)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("resource %q: %w", path, err)
	}
	if class == domain.ClassProfileImage.String() {
		res.Class = domain.ClassProfileImage
	}
	return res, nil
}

// RecordView implements media.ResourceStore.
func (s *Store) RecordView(ctx context.Context, id string) error {
	const query = `
		UPDATE media_files
		SET views_count = views_count + 1, viewed_at = now()
		WHERE id = $1`

	if _, err := s.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("recording view for %q: %w", id, err)
	}
	return nil
}
