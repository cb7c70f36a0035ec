package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.28.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "tripharvest"
	ServiceVersion = "1.0.0"
	MeterName      = "tripharvest"
)

// OTelProviders holds the OpenTelemetry providers and derived instruments
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// InitializeOTel sets up tracing (stdout exporter in development, sampled
// fully) and metrics (prometheus exporter served on /metrics).
func InitializeOTel(logger *slog.Logger) (*OTelProviders, error) {
	ctx := context.Background()

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{Logger: logger}

	traceExporter, err := stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}
	providers.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(1.0)),
	)
	otel.SetTracerProvider(providers.TracerProvider)
	providers.Tracer = providers.TracerProvider.Tracer(ServiceName)

	metricExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	providers.MeterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(metricExporter),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(providers.MeterProvider)
	providers.Meter = providers.MeterProvider.Meter(MeterName)
	providers.PrometheusHTTP = promhttp.Handler()

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "opentelemetry initialized",
		slog.String("service", ServiceName),
		slog.String("version", ServiceVersion))

	return providers, nil
}

// Shutdown flushes and stops the providers. Safe to call once on exit.
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var firstErr error
	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			firstErr = err
		}
	}
	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// HarvestMetrics holds the counters recorded by the orchestrator and the
// geocode engine.
type HarvestMetrics struct {
	OperationsStarted   metric.Int64Counter
	OperationsCompleted metric.Int64Counter
	OperationsFailed    metric.Int64Counter
	ListingsUpserted    metric.Int64Counter
	GeocodeCacheHits    metric.Int64Counter
	GeocodeCacheMisses  metric.Int64Counter
}

// NewHarvestMetrics registers the harvest instruments on the given meter
func NewHarvestMetrics(meter metric.Meter) (*HarvestMetrics, error) {
	m := &HarvestMetrics{}
	var err error

	if m.OperationsStarted, err = meter.Int64Counter("harvest_operations_started_total",
		metric.WithDescription("Harvest operations started")); err != nil {
		return nil, err
	}
	if m.OperationsCompleted, err = meter.Int64Counter("harvest_operations_completed_total",
		metric.WithDescription("Harvest operations finished in completed state")); err != nil {
		return nil, err
	}
	if m.OperationsFailed, err = meter.Int64Counter("harvest_operations_failed_total",
		metric.WithDescription("Harvest operations finished in failed state")); err != nil {
		return nil, err
	}
	if m.ListingsUpserted, err = meter.Int64Counter("harvest_listings_upserted_total",
		metric.WithDescription("Listings written to the store")); err != nil {
		return nil, err
	}
	if m.GeocodeCacheHits, err = meter.Int64Counter("geocode_cache_hits_total",
		metric.WithDescription("Geocode resolutions served from cache")); err != nil {
		return nil, err
	}
	if m.GeocodeCacheMisses, err = meter.Int64Counter("geocode_cache_misses_total",
		metric.WithDescription("Geocode resolutions requiring external queries")); err != nil {
		return nil, err
	}
	return m, nil
}
