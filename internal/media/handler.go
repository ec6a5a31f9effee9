package media

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"mediagate/internal/domain"
	"mediagate/internal/platform/telemetry"
)

// DefaultValidatorTimeout bounds one identity validator call. A timeout
// degrades to an anonymous caller rather than blocking delivery on an
// unreachable validator.
const DefaultValidatorTimeout = 2 * time.Second

// Deps wires the orchestrator's collaborators.
type Deps struct {
	Identity IdentityValidator
	Store    ResourceStore
	Blobs    BlobStore
	Sources  []CredentialSource
	Metrics  *telemetry.DeliveryMetrics // optional; nil skips recording

	// ValidatorTimeout bounds one Validate call. Zero means
	// DefaultValidatorTimeout.
	ValidatorTimeout time.Duration
}

// Handler is the delivery orchestrator: resolve identity, look up
// metadata, apply the visibility policy, parse the range, stream bytes.
// One Handler serves all requests concurrently; it holds no per-request
// state.
type Handler struct {
	deps Deps
}

// NewHandler builds the delivery handler. Sources defaults to the
// header-then-cookie precedence when nil.
func NewHandler(deps Deps) *Handler {
	if deps.Sources == nil {
		deps.Sources = DefaultCredentialSources()
	}
	if deps.ValidatorTimeout <= 0 {
		deps.ValidatorTimeout = DefaultValidatorTimeout
	}
	return &Handler{deps: deps}
}

// ServeHTTP handles GET /media/{path...}.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	path := r.PathValue("path")
	if path == "" {
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
		return
	}

	// Resolve identity. Every validator failure degrades to an
	// anonymous caller so public resources stay reachable with a stale
	// cookie.
	principal := h.resolvePrincipal(r)

	res, err := h.deps.Store.Lookup(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "resource not found")
			return
		}
		slog.Error("resource lookup failed",
			"path", path,
			"request_id", RequestIDFromContext(ctx),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}

	decision := Decide(principal, res)
	if h.deps.Metrics != nil {
		result := "allow"
		if !decision.Allowed {
			result = "deny"
		}
		h.deps.Metrics.RecordAccessDecision(ctx, res.Visibility.String(), result)
	}
	if !decision.Allowed {
		// The reason stays in the log; the body is generic for every
		// denial so existence cannot be probed.
		slog.Info("delivery denied",
			"resource_id", res.ID,
			"tier", res.Visibility.String(),
			"reason", decision.Reason.String(),
			"principal_id", principalID(principal),
			"request_id", RequestIDFromContext(ctx),
		)
		writeError(w, http.StatusForbidden, "forbidden", "access denied")
		return
	}

	// The blob's actual size must match the metadata before any range
	// math. A missing blob after a metadata hit is reported exactly
	// like a metadata miss.
	actualSize, err := h.deps.Blobs.Size(ctx, res)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			slog.Warn("blob missing for stored resource",
				"resource_id", res.ID,
				"path", res.Path,
				"request_id", RequestIDFromContext(ctx),
			)
			writeError(w, http.StatusNotFound, "not_found", "resource not found")
			return
		}
		slog.Error("blob stat failed", "resource_id", res.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}
	if actualSize != res.Size {
		slog.Error("storage inconsistency: metadata and blob size disagree",
			"resource_id", res.ID,
			"metadata_size", res.Size,
			"blob_size", actualSize,
			"request_id", RequestIDFromContext(ctx),
		)
		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordStorageInconsistency(ctx)
		}
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}

	outcome := ParseRange(r.Header.Get("Range"), res.Size)
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordRangeOutcome(ctx, rangeOutcomeLabel(outcome.Kind))
	}
	if outcome.Kind == RangeUnsatisfiable {
		WriteRangeNotSatisfiable(w, res.Size)
		return
	}

	start, end := outcome.Start, outcome.End
	if outcome.Kind == RangeNone {
		start, end = 0, res.Size-1
	}

	body, err := h.deps.Blobs.Open(ctx, res, start, end)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "resource not found")
			return
		}
		slog.Error("blob open failed", "resource_id", res.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "an unexpected error occurred")
		return
	}
	defer body.Close()

	// View accounting is best-effort; delivery never fails on it.
	if err := h.deps.Store.RecordView(ctx, res.ID); err != nil {
		slog.Warn("recording view failed", "resource_id", res.ID, "error", err)
	}

	written, err := WriteContent(ctx, w, outcome, res.Size, res.ContentType, body)
	if h.deps.Metrics != nil && written > 0 {
		h.deps.Metrics.RecordBytesServed(ctx, written)
	}
	if err != nil {
		// Headers are already out; nothing more to send. Disconnects
		// while seeking are routine, so log at debug.
		slog.Debug("media stream aborted",
			"resource_id", res.ID,
			"bytes_written", written,
			"error", err,
		)
	}
}

// resolvePrincipal runs credential resolution and identity validation.
// Returns nil for anonymous callers and for every validator failure.
func (h *Handler) resolvePrincipal(r *http.Request) *domain.Principal {
	token, ok := ResolveCredential(h.deps.Sources, r)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.deps.ValidatorTimeout)
	defer cancel()

	p, err := h.deps.Identity.Validate(ctx, token)
	if err != nil {
		if h.deps.Metrics != nil {
			h.deps.Metrics.RecordAuthValidation(r.Context(), "failure")
		}
		slog.Debug("identity validation failed, continuing as anonymous",
			"error", err,
			"request_id", RequestIDFromContext(r.Context()),
		)
		return nil
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.RecordAuthValidation(r.Context(), "success")
	}
	return &p
}

func principalID(p *domain.Principal) string {
	if p == nil {
		return ""
	}
	return p.ID
}

func rangeOutcomeLabel(k RangeKind) string {
	switch k {
	case RangePartial:
		return "partial"
	case RangeUnsatisfiable:
		return "unsatisfiable"
	default:
		return "full"
	}
}

func writeError(w http.ResponseWriter, status int, errCode, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(domain.ErrorResponse{
		Error:   errCode,
		Message: msg,
	}); err != nil {
		slog.Error("encoding error response", "error", err)
	}
}
