// Package s3blob serves media bytes from an S3-compatible object store.
package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"mediagate/internal/domain"
)

// Config holds connection settings for the object store.
type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// Store is a BlobStore backed by a single bucket. Resource paths are
// object keys.
type Store struct {
	cl     *minio.Client
	bucket string
}

// New creates a Store for the configured bucket.
func New(cfg Config) (*Store, error) {
	cl, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating s3 client: %w", err)
	}
	return &Store{cl: cl, bucket: cfg.Bucket}, nil
}

// Size implements media.BlobStore.
func (s *Store) Size(ctx context.Context, res domain.Resource) (int64, error) {
	info, err := s.cl.StatObject(ctx, s.bucket, res.Path, minio.StatObjectOptions{})
	if err != nil {
		if isMissing(err) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("stat object %q: %w", res.Path, err)
	}
	return info.Size, nil
}

// Open implements media.BlobStore using a ranged GET, so only the
// requested interval crosses the wire.
func (s *Store) Open(ctx context.Context, res domain.Resource, start, end int64) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if err := opts.SetRange(start, end); err != nil {
		return nil, fmt.Errorf("range %d-%d for %q: %w", start, end, res.Path, err)
	}
	obj, err := s.cl.GetObject(ctx, s.bucket, res.Path, opts)
	if err != nil {
		return nil, fmt.Errorf("get object %q: %w", res.Path, err)
	}
	// GetObject is lazy; surface a missing object now instead of on
	// the first read, after headers are already out.
	if _, err := obj.Stat(); err != nil {
		obj.Close()
		if isMissing(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("stat object %q: %w", res.Path, err)
	}
	return obj, nil
}

func isMissing(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket"
}
