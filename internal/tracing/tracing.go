// Package tracing installs a process-wide OpenTelemetry TracerProvider and
// exposes the Tracer used at every major operation boundary (ingest,
// retrieval, index orchestration). No OTLP exporter is wired yet — spans are
// recorded and sampled but not shipped anywhere — so this is the seam a
// deployment adds an exporter to, not a full observability backend.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/siherrmann/graphrag"

// Init installs a sampling TracerProvider tagged with serviceName as the
// global provider and returns a shutdown func.
func Init(serviceName string) func() {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return func() { _ = tp.Shutdown(context.Background()) }
}

// Tracer returns the package-wide Tracer, safe to call even before Init (it
// then resolves to otel's no-op global provider).
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}
