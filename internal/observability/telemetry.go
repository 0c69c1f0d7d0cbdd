package observability

import (
	"context"
	"log"
	"os"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
)

// OTLPEndpointEnv enables trace and metric export when set. The exporters
// read the rest of the standard OTEL_EXPORTER_OTLP_* variables themselves.
const OTLPEndpointEnv = "OTEL_EXPORTER_OTLP_ENDPOINT"

// Telemetry owns the SDK providers installed as the OpenTelemetry globals.
// The zero value is disabled.
type Telemetry struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// InitTelemetry installs OTLP/HTTP trace and metric pipelines when
// OTEL_EXPORTER_OTLP_ENDPOINT is set. Otherwise spans and instruments stay
// on the global no-op providers.
func InitTelemetry(ctx context.Context, serviceName, version string) (*Telemetry, error) {
	if os.Getenv(OTLPEndpointEnv) == "" {
		log.Println("[observability] OTLP endpoint not configured, traces and metrics disabled")
		return &Telemetry{}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", version),
		),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "build telemetry resource")
	}

	traceExporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "create trace exporter")
	}
	metricExporter, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = traceExporter.Shutdown(ctx)
		return nil, errors.Wrap(err, "create metric exporter")
	}

	t := &Telemetry{
		tracerProvider: sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(traceExporter),
			sdktrace.WithResource(res),
		),
		meterProvider: sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
			sdkmetric.WithResource(res),
		),
	}
	otel.SetTracerProvider(t.tracerProvider)
	otel.SetMeterProvider(t.meterProvider)
	BindMeterProvider(t.meterProvider)

	log.Printf("[observability] OTLP export enabled (%s)", os.Getenv(OTLPEndpointEnv))
	return t, nil
}

// Enabled reports whether SDK providers are installed.
func (t *Telemetry) Enabled() bool {
	return t != nil && t.tracerProvider != nil
}

// Shutdown flushes pending spans and metric points and stops the exporters.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if !t.Enabled() {
		return nil
	}
	var err error
	if terr := t.tracerProvider.Shutdown(ctx); terr != nil {
		err = multierr.Append(err, errors.Wrap(terr, "shutdown tracer provider"))
	}
	if merr := t.meterProvider.Shutdown(ctx); merr != nil {
		err = multierr.Append(err, errors.Wrap(merr, "shutdown meter provider"))
	}
	return err
}
