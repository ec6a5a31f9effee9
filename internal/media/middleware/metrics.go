package middleware

import (
	"net/http"
	"strings"
	"time"

	"mediagate/internal/media"
	"mediagate/internal/platform/telemetry"
)

// Metrics returns middleware that records HTTP request metrics.
// Place as the outermost middleware to capture the full request lifecycle.
func Metrics(m *telemetry.DeliveryMetrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw := &media.StatusWriter{ResponseWriter: w, Code: http.StatusOK}

			next.ServeHTTP(sw, r)

			if m != nil {
				duration := time.Since(start).Seconds()
				m.RecordHTTPRequest(r.Context(), r.Method, routeLabel(r.URL.Path), sw.Code, duration)
			}
		})
	}
}

// routeLabel collapses per-file paths into one label; media paths are
// unbounded and would blow up metric cardinality.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/media/") {
		return "/media/{path}"
	}
	return path
}
