package media

import (
	"context"
	"io"
	"net/http"

	"mediagate/internal/domain"
)

// IdentityValidator verifies a bearer token and resolves the principal
// behind it. Token cryptography lives behind this interface; the
// delivery path only consumes the result. Failures are reported as
// domain.ErrTokenExpired, ErrTokenMalformed or ErrTokenInvalid.
type IdentityValidator interface {
	Validate(ctx context.Context, token string) (domain.Principal, error)
}

// ResourceStore is the authoritative source of file metadata.
type ResourceStore interface {
	// Lookup fetches the resource stored under path. Soft-deleted
	// resources are reported as domain.ErrNotFound.
	Lookup(ctx context.Context, path string) (domain.Resource, error)

	// RecordView bumps the view counter for a delivered resource.
	// Best-effort: callers log failures and carry on.
	RecordView(ctx context.Context, id string) error
}

// BlobStore holds the file bytes referenced by resource metadata.
type BlobStore interface {
	// Size returns the actual stored size of the blob. A missing blob
	// is reported as domain.ErrNotFound.
	Size(ctx context.Context, res domain.Resource) (int64, error)

	// Open returns a reader positioned at start covering exactly the
	// bytes [start, end]. The caller closes it.
	Open(ctx context.Context, res domain.Resource, start, end int64) (io.ReadCloser, error)
}

// RateLimiter decides whether a request identified by key should be allowed.
type RateLimiter interface {
	Allow(key string) RateLimitResult
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed    bool
	RetryAfter int // seconds until next token available; 0 if allowed
}

// StatusWriter wraps http.ResponseWriter to capture the status code.
type StatusWriter struct {
	http.ResponseWriter
	Code int
}

func (sw *StatusWriter) WriteHeader(code int) {
	sw.Code = code
	sw.ResponseWriter.WriteHeader(code)
}

// RequestIDFromContext extracts the request ID from the context.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// ContextWithRequestID stores the request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

type requestIDKey struct{}
