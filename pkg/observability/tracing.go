package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Tracer returns the tracer of the current global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// Meter returns the meter of the current global provider.
func Meter() metric.Meter {
	return otel.Meter(InstrumentationName)
}

// Span wraps a trace span and records its duration on End.
type Span struct {
	span       trace.Span
	name       string
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named operationName as a child of ctx.
func StartSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)
	return ctx, &Span{
		span:      span,
		name:      operationName,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute, applied when the span ends.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	case []string:
		attr = attribute.StringSlice(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// Finish records the outcome of the traced operation.
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
		return
	}
	s.span.SetStatus(codes.Ok, "")
}

// End ends the span and records its duration.
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	recordDuration(s.name, time.Since(s.startTime))
	s.span.End()
}

// Recording reports whether the span is sampled.
func (s *Span) Recording() bool {
	return s.span.IsRecording()
}

func recordDuration(operation string, d time.Duration) {
	hist, err := Meter().Float64Histogram("harvest.span.duration",
		metric.WithUnit("s"),
		metric.WithDescription("Duration of traced harvest operations"))
	if err != nil {
		return
	}
	hist.Record(context.Background(), d.Seconds(),
		metric.WithAttributes(attribute.String("operation", operation)))
}
