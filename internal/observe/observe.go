// Package observe exposes the process tracer. No exporter is configured here;
// callers that want spans shipped somewhere install an OTel SDK provider, and
// everyone else gets the global no-op provider.
package observe

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("recall")

// StartSpan starts a span on the process tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// String builds a string attribute. Thin alias so call sites do not import
// the attribute package for one constructor.
func String(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// Int builds an int attribute.
func Int(key string, value int) attribute.KeyValue {
	return attribute.Int(key, value)
}
