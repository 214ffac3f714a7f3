package performance

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	derrors "diarizer/internal/errors"
)

// TracerName is the instrumentation name of diarizer spans
const TracerName = "diarizer"

// Span attribute keys
const (
	AttrAudioPath = "audio_path"
	AttrStage     = "stage"
	AttrSegment   = "segment"
	AttrStart     = "start"
	AttrEnd       = "end"
	AttrSpeakers  = "speakers"
	AttrErrorKind = "error_kind"
	AttrRetryable = "retryable"
)

// Tracer starts spans for pipeline runs, stages and segments. Spans go to the
// globally registered otel provider, which is a no-op unless the host
// installs one.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a Tracer on the global provider
func NewTracer() *Tracer {
	return &Tracer{tracer: otel.Tracer(TracerName)}
}

// StartRunSpan starts the root span of one diarization run
func (t *Tracer) StartRunSpan(ctx context.Context, audioPath string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "diarizer.run",
		trace.WithAttributes(attribute.String(AttrAudioPath, audioPath)),
	)
}

// StartStageSpan starts a span for a pipeline stage
func (t *Tracer) StartStageSpan(ctx context.Context, stage string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "diarizer.stage."+stage,
		trace.WithAttributes(attribute.String(AttrStage, stage)),
	)
}

// StartSegmentSpan starts a span for the extraction of one segment
func (t *Tracer) StartSegmentSpan(ctx context.Context, index int, start, end float64) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, "diarizer.segment",
		trace.WithAttributes(
			attribute.Int(AttrSegment, index),
			attribute.Float64(AttrStart, start),
			attribute.Float64(AttrEnd, end),
		),
	)
}

// EndSpan records err on span, if any, and ends it
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(
			attribute.String(AttrErrorKind, string(derrors.KindOf(err))),
			attribute.Bool(AttrRetryable, derrors.IsRetryable(err)),
		)
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
