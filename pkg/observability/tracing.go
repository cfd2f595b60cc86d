package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name of the tracer for pipeline operations.
const TracerName = "notetaker"

// Span attribute keys
const (
	AttrMeetingID   = "meeting_id"
	AttrStage       = "stage"
	AttrQualityTier = "quality_tier"
	AttrLanguage    = "language"
	AttrTranslated  = "translated"
	AttrErrorCode   = "error_code"
	AttrFallback    = "fallback"
	AttrSweep       = "sweep"
)

// Span names
const (
	SpanPipeline = "notetaker.pipeline"
	SpanSweep    = "notetaker.sweep"
)

// Tracer provides distributed tracing for pipeline runs.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a tracer from the global provider.
func NewTracer() *Tracer {
	return NewTracerFromProvider(otel.GetTracerProvider())
}

// NewTracerFromProvider creates a tracer from tp.
func NewTracerFromProvider(tp trace.TracerProvider) *Tracer {
	return &Tracer{tracer: tp.Tracer(TracerName)}
}

// StartPipelineSpan starts the root span for one meeting's pipeline.
func (t *Tracer) StartPipelineSpan(ctx context.Context, meetingID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanPipeline,
		trace.WithAttributes(attribute.String(AttrMeetingID, meetingID)),
	)
}

// StartStageSpan starts a span for a pipeline stage.
func (t *Tracer) StartStageSpan(ctx context.Context, meetingID, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "notetaker.stage."+stage,
		trace.WithAttributes(
			attribute.String(AttrMeetingID, meetingID),
			attribute.String(AttrStage, stage),
		),
	)
}

// StartSweepSpan starts a span for a maintenance sweep.
func (t *Tracer) StartSweepSpan(ctx context.Context, sweep string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, SpanSweep,
		trace.WithAttributes(attribute.String(AttrSweep, sweep)),
	)
}

// SetQualityTier records the note quality tier on span.
func SetQualityTier(span trace.Span, tier string) {
	span.SetAttributes(attribute.String(AttrQualityTier, tier))
}

// SetFallback marks span as having used a fallback value.
func SetFallback(span trace.Span, reason error) {
	span.SetAttributes(attribute.Bool(AttrFallback, true))
	if reason != nil {
		span.AddEvent("fallback", trace.WithAttributes(attribute.String("reason", reason.Error())))
	}
}

// SetError records an error on the span.
func SetError(span trace.Span, err error, code string) {
	span.SetStatus(codes.Error, err.Error())
	if code != "" {
		span.SetAttributes(attribute.String(AttrErrorCode, code))
	}
	span.RecordError(err)
}

// SetSuccess marks the span as successful.
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// GetTraceID returns the trace ID from the context.
func GetTraceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().HasTraceID() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}
