package tracing

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const ServiceName = "bansurid"

// Tracer returns the registered tracer for this service. It defaults to a no-op trace.Tracer if not yet initialized.
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(ServiceName)
}
