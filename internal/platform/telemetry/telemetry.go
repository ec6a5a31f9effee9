package telemetry

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// ShutdownFunc releases telemetry resources.
type ShutdownFunc func(ctx context.Context) error

// Setup initializes OpenTelemetry with a Prometheus exporter.
// Returns a shutdown function that must be called on exit.
func Setup(ctx context.Context, serviceName string) (ShutdownFunc, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("creating prometheus exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return provider.Shutdown, nil
}

// MetricsHandler returns an http.Handler that serves Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// DeliveryMetrics holds all OTel instruments for the media delivery path.
type DeliveryMetrics struct {
	httpRequestsTotal         otelmetric.Int64Counter
	httpRequestDuration       otelmetric.Float64Histogram
	authValidationsTotal      otelmetric.Int64Counter
	accessDecisionsTotal      otelmetric.Int64Counter
	rangeOutcomesTotal        otelmetric.Int64Counter
	bytesServedTotal          otelmetric.Int64Counter
	storageInconsistentsTotal otelmetric.Int64Counter
	rateLimitDecisionsTotal   otelmetric.Int64Counter
}

// NewDeliveryMetrics creates and registers all delivery metrics.
func NewDeliveryMetrics() (*DeliveryMetrics, error) {
	meter := otel.Meter("mediagate")
	m := &DeliveryMetrics{}
	var err error

	latencyBuckets := otelmetric.WithExplicitBucketBoundaries(
		0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0,
	)

	if m.httpRequestsTotal, err = meter.Int64Counter("mediagate_http_requests_total",
		otelmetric.WithDescription("Total HTTP requests")); err != nil {
		return nil, fmt.Errorf("creating http_requests_total: %w", err)
	}
	if m.httpRequestDuration, err = meter.Float64Histogram("mediagate_http_request_duration_seconds",
		otelmetric.WithDescription("HTTP request duration"), latencyBuckets); err != nil {
		return nil, fmt.Errorf("creating http_request_duration: %w", err)
	}
	if m.authValidationsTotal, err = meter.Int64Counter("mediagate_auth_validations_total",
		otelmetric.WithDescription("Total identity validations")); err != nil {
		return nil, fmt.Errorf("creating auth_validations_total: %w", err)
	}
	if m.accessDecisionsTotal, err = meter.Int64Counter("mediagate_access_decisions_total",
		otelmetric.WithDescription("Total visibility policy decisions")); err != nil {
		return nil, fmt.Errorf("creating access_decisions_total: %w", err)
	}
	if m.rangeOutcomesTotal, err = meter.Int64Counter("mediagate_range_outcomes_total",
		otelmetric.WithDescription("Total parsed range outcomes")); err != nil {
		return nil, fmt.Errorf("creating range_outcomes_total: %w", err)
	}
	if m.bytesServedTotal, err = meter.Int64Counter("mediagate_bytes_served_total",
		otelmetric.WithDescription("Total media bytes streamed to clients")); err != nil {
		return nil, fmt.Errorf("creating bytes_served_total: %w", err)
	}
	if m.storageInconsistentsTotal, err = meter.Int64Counter("mediagate_storage_inconsistencies_total",
		otelmetric.WithDescription("Metadata/blob size mismatches")); err != nil {
		return nil, fmt.Errorf("creating storage_inconsistencies_total: %w", err)
	}
	if m.rateLimitDecisionsTotal, err = meter.Int64Counter("mediagate_ratelimit_decisions_total",
		otelmetric.WithDescription("Total rate limit decisions")); err != nil {
		return nil, fmt.Errorf("creating ratelimit_decisions_total: %w", err)
	}

	return m, nil
}

// RecordHTTPRequest records an HTTP request metric.
func (m *DeliveryMetrics) RecordHTTPRequest(ctx context.Context, method, route string, status int, durationSec float64) {
	attrs := otelmetric.WithAttributes(
		methodAttr(method),
		routeAttr(route),
		statusAttr(status),
	)
	m.httpRequestsTotal.Add(ctx, 1, attrs)
	m.httpRequestDuration.Record(ctx, durationSec, attrs)
}

// RecordAuthValidation records an identity validation result.
func (m *DeliveryMetrics) RecordAuthValidation(ctx context.Context, result string) {
	m.authValidationsTotal.Add(ctx, 1, otelmetric.WithAttributes(resultAttr(result)))
}

// RecordAccessDecision records a policy decision for a visibility tier.
func (m *DeliveryMetrics) RecordAccessDecision(ctx context.Context, tier, result string) {
	m.accessDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		tierAttr(tier),
		resultAttr(result),
	))
}

// RecordRangeOutcome records how a Range header resolved.
func (m *DeliveryMetrics) RecordRangeOutcome(ctx context.Context, outcome string) {
	m.rangeOutcomesTotal.Add(ctx, 1, otelmetric.WithAttributes(outcomeAttr(outcome)))
}

// RecordBytesServed records bytes actually streamed to a client.
func (m *DeliveryMetrics) RecordBytesServed(ctx context.Context, n int64) {
	m.bytesServedTotal.Add(ctx, n)
}

// RecordStorageInconsistency records a metadata/blob size mismatch.
func (m *DeliveryMetrics) RecordStorageInconsistency(ctx context.Context) {
	m.storageInconsistentsTotal.Add(ctx, 1)
}

// RecordRateLimitDecision records a rate limit decision.
func (m *DeliveryMetrics) RecordRateLimitDecision(ctx context.Context, layer, result string) {
	m.rateLimitDecisionsTotal.Add(ctx, 1, otelmetric.WithAttributes(
		layerAttr(layer),
		resultAttr(result),
	))
}
