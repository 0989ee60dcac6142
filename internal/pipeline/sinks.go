package pipeline

import (
	"context"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
)

// Record is the per-frame output of the analysis: one per input frame, always.
type Record struct {
	Skeleton pose.Skeleton
	Metrics  biomech.MetricFrame
	Tag      phase.Tag
}

// RecordSink receives records in frame order.
type RecordSink interface {
	WriteRecord(ctx context.Context, r Record) error
}

// DirectiveSink receives render directives in frame order.
type DirectiveSink interface {
	WriteDirective(ctx context.Context, d director.Directive) error
}

// SegmentSink receives closed action segments.
type SegmentSink interface {
	WriteSegment(ctx context.Context, s phase.Segment) error
}

// RecordFunc adapts a function to a RecordSink.
type RecordFunc func(ctx context.Context, r Record) error

func (f RecordFunc) WriteRecord(ctx context.Context, r Record) error { return f(ctx, r) }

// DirectiveFunc adapts a function to a DirectiveSink.
type DirectiveFunc func(ctx context.Context, d director.Directive) error

func (f DirectiveFunc) WriteDirective(ctx context.Context, d director.Directive) error {
	return f(ctx, d)
}

// SegmentFunc adapts a function to a SegmentSink.
type SegmentFunc func(ctx context.Context, s phase.Segment) error

func (f SegmentFunc) WriteSegment(ctx context.Context, s phase.Segment) error { return f(ctx, s) }

// Sinks groups the consumers of a run.
type Sinks struct {
	Records    []RecordSink
	Directives []DirectiveSink
	Segments   []SegmentSink
}
