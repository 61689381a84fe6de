package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/datarep/internal/representation"
)

// Attribute keys. The repr.* keys are set by conversion hops.
const (
	AttrFamily     = representation.AttrFamily
	AttrRule       = representation.AttrRule
	AttrSourceKind = representation.AttrSourceKind
	AttrTargetKind = representation.AttrTargetKind
	AttrHop        = representation.AttrHop

	AttrCommand  = "cli.command"
	AttrLocation = "volume.location"
)

// Span name prefixes.
const (
	SpanPrefixConvert = representation.SpanPrefixConvert
	SpanPrefixCommand = "cli.command."
)

// RunCommand runs fn inside a span named after the CLI command. A nil
// tracer runs fn directly.
func RunCommand(ctx context.Context, tracer trace.Tracer, name string, fn func(context.Context) error, attrs ...attribute.KeyValue) error {
	if tracer == nil {
		return fn(ctx)
	}

	ctx, span := tracer.Start(ctx, SpanPrefixCommand+name, trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String(AttrCommand, name))
	span.SetAttributes(attrs...)

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return err
}

// TraceID returns the hex trace id of the span in ctx, or "" when none is
// recording.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
