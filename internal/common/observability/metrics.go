package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability owns the OpenTelemetry meter used to time marketplace API calls.
// A zero value is usable and records nothing.
type Observability struct {
	meterProvider   *metric.MeterProvider
	meter           otelmetric.Meter
	requestCounter  otelmetric.Int64Counter
	requestDuration otelmetric.Float64Histogram
}

// New creates a meter provider backed by the prometheus exporter. Failures degrade
// to a no-op Observability; metrics must never break a user action.
func New(serviceName string) (*Observability, error) {
	exporter, err := prometheus.New()
	if err != nil {
		return &Observability{}, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	return newWithProvider(provider, serviceName), nil
}

func newWithProvider(provider *metric.MeterProvider, serviceName string) *Observability {
	meter := provider.Meter(serviceName)

	requestCounter, _ := meter.Int64Counter(
		"api.requests",
		otelmetric.WithDescription("Number of marketplace API requests"),
	)

	requestDuration, _ := meter.Float64Histogram(
		"api.request.duration",
		otelmetric.WithDescription("Marketplace API request duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider:   provider,
		meter:           meter,
		requestCounter:  requestCounter,
		requestDuration: requestDuration,
	}
}

// RecordRequest implements the API client's Recorder.
func (o *Observability) RecordRequest(ctx context.Context, endpoint, outcome string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("outcome", outcome),
	)
	if o.requestCounter != nil {
		o.requestCounter.Add(ctx, 1, attrs)
	}
	if o.requestDuration != nil {
		o.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

func (o *Observability) Shutdown() {
	if o.meterProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.meterProvider.Shutdown(ctx)
	}
}
