package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// OTelTracer implements Tracer by opening a real OpenTelemetry span per
// call and closing it when the returned func runs, unlike a point-in-time
// log event: supersteps and actor message handling have a duration worth
// recording, not just a timestamp.
type OTelTracer struct {
	tracer trace.Tracer
}

// NewOTelTracer builds an OTelTracer from a named OpenTelemetry tracer,
// e.g. otel.Tracer("meshrun").
func NewOTelTracer(tracer trace.Tracer) *OTelTracer {
	return &OTelTracer{tracer: tracer}
}

func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	spanCtx, span := t.tracer.Start(ctx, name)
	kvs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		kvs = append(kvs, attribute.String(k, v))
	}
	span.SetAttributes(kvs...)
	return spanCtx, func(err error) {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(fmt.Errorf("%w", err))
		}
		span.End()
	}
}

// Flush forces export of pending spans on the globally configured tracer
// provider, if it supports flushing (the SDK provider does; the noop
// provider does not).
func Flush(ctx context.Context) error {
	tp := otel.GetTracerProvider()
	type flusher interface {
		ForceFlush(context.Context) error
	}
	if f, ok := tp.(flusher); ok {
		return f.ForceFlush(ctx)
	}
	return nil
}
