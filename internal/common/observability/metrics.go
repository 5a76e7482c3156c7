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

type Observability struct {
	serviceName    string
	meterProvider  *metric.MeterProvider
	meter          otelmetric.Meter
	itemCounter    otelmetric.Int64Counter
	batchDuration  otelmetric.Float64Histogram
	tracerShutdown func(context.Context) error
}

type Options struct {
	ServiceName    string
	JaegerEndpoint string
	SampleRatio    float64
}

var startTracing = setupTracing

// New registers the OTel meter provider on the Prometheus exporter and, when a
// Jaeger endpoint is configured, a tracer provider. Failures degrade to no-op
// instruments and the global noop tracer. A tracing failure is returned after
// the meter is in place.
func New(opts Options) (*Observability, error) {
	o := &Observability{serviceName: opts.ServiceName}

	var tracingErr error
	if opts.JaegerEndpoint != "" {
		shutdown, err := startTracing(opts)
		if err != nil {
			tracingErr = err
		} else {
			o.tracerShutdown = shutdown
		}
	}

	exporter, err := prometheus.New()
	if err != nil {
		return o, err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(opts.ServiceName)

	o.meterProvider = provider
	o.meter = meter
	o.itemCounter, _ = meter.Int64Counter(
		"bulk_filing.items",
		otelmetric.WithDescription("Bulk filing clients submitted"),
	)
	o.batchDuration, _ = meter.Float64Histogram(
		"bulk_filing.batch.duration",
		otelmetric.WithDescription("Bulk filing batch duration"),
		otelmetric.WithUnit("ms"),
	)

	return o, tracingErr
}

// RecordBatch implements the submission driver's batch recorder.
func (o *Observability) RecordBatch(ctx context.Context, succeeded, failed int, status string, duration time.Duration) {
	if o.itemCounter != nil {
		o.itemCounter.Add(ctx, int64(succeeded), otelmetric.WithAttributes(attribute.String("status", "success")))
		o.itemCounter.Add(ctx, int64(failed), otelmetric.WithAttributes(attribute.String("status", "failed")))
	}
	if o.batchDuration != nil {
		o.batchDuration.Record(ctx, float64(duration.Milliseconds()), otelmetric.WithAttributes(
			attribute.String("status", status),
		))
	}
}

func (o *Observability) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
	if o.tracerShutdown != nil {
		_ = o.tracerShutdown(ctx)
	}
}
