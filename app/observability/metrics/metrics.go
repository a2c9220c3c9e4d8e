package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	RouteRecommendRequestsTotal   metric.Int64Counter
	RouteRecommendDurationSeconds metric.Float64Histogram
	RerankFallbacksTotal          metric.Int64Counter
	ExternalCallErrorsTotal       metric.Int64Counter
	DbQueryDurationSeconds        metric.Float64Histogram
	DbQueryErrorsTotal            metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics initializes the global metrics instruments once, using
// the meter from the globally configured MeterProvider. Call it after the
// tracer package has installed the Prometheus-backed provider.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("SeoulQuest")
		var err error
		m := &AppMetrics{}

		m.RouteRecommendRequestsTotal, err = meter.Int64Counter(
			"route_recommend_requests_total",
			metric.WithDescription("Total number of route recommendations served, by selection path"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create route_recommend_requests_total: %v", err)
		}

		m.RouteRecommendDurationSeconds, err = meter.Float64Histogram(
			"route_recommend_duration_seconds",
			metric.WithDescription("Duration of route recommendations in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create route_recommend_duration_seconds: %v", err)
		}

		m.RerankFallbacksTotal, err = meter.Int64Counter(
			"route_rerank_fallbacks_total",
			metric.WithDescription("Times the LLM rerank path fell back to heuristic selection"),
			metric.WithUnit("{fallback}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create route_rerank_fallbacks_total: %v", err)
		}

		m.ExternalCallErrorsTotal, err = meter.Int64Counter(
			"external_call_errors_total",
			metric.WithDescription("Failed calls to embedding, vision, vector search and LLM services"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create external_call_errors_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the global AppMetrics, initializing it against whatever
// MeterProvider is installed (a no-op one in tests).
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// ObserveQuery records the duration of one database query and counts it
// as an error when err is non-nil.
func ObserveQuery(ctx context.Context, operation string, start time.Time, err error) {
	m := Get()
	attrs := metric.WithAttributes(attribute.String("db.operation", operation))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}

// ExternalCallFailed counts a failed call to an upstream AI or search service.
func ExternalCallFailed(ctx context.Context, service string) {
	Get().ExternalCallErrorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("service", service)))
}
