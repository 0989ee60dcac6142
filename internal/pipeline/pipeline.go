// Package pipeline runs the analysis stages over a sequence of estimator frames: a
// parallel per-frame pre-pass followed by the ordered engine, classifier and director.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
)

// Config is the immutable configuration of one run. It is shared read-only by every
// pre-pass worker.
type Config struct {
	// Workers is the number of goroutines in the per-frame pre-pass.
	Workers   int
	Normalize normalize.Config
	Biomech   biomech.Config
	Phase     phase.Config
	Director  director.Config
	// Ghost is an optional reference swing for the comparison overlay.
	Ghost *director.Ghost
}

// Summary describes a completed run.
type Summary struct {
	Frames int
	// Insufficient counts frames the normalizer could not scale.
	Insufficient int
	MetricErrors int
	Conflicts    int
	Segments     []phase.Segment
	Bursts       []director.Burst
}

// Pipeline executes runs. A Pipeline holds no per-run state and may be reused.
type Pipeline struct {
	cfg Config
	log *slog.Logger
}

// New creates a pipeline.
func New(cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{cfg: cfg, log: logger.With("component", "pipeline")}
}

// prepared is the pre-pass output for one frame.
type prepared struct {
	pos        int
	skel       pose.Skeleton
	sample     biomech.Sample
	normErr    error
	metricErrs []error
}

// Run analyses frames and feeds the sinks in frame order. The frame sequence is
// validated first; an IntegrityError aborts before any sink is called. Sink errors and
// context cancellation also abort the run.
func (p *Pipeline) Run(ctx context.Context, frames []pose.RawFrame, sinks Sinks) (Summary, error) {
	var sum Summary
	if err := Validate(frames); err != nil {
		return sum, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := p.prepass(ctx, frames)

	st := &ordered{
		p:          p,
		sinks:      sinks,
		sum:        &sum,
		engine:     biomech.NewEngine(p.cfg.Biomech),
		classifier: phase.New(p.cfg.Phase),
		director:   director.New(p.cfg.Director, p.cfg.Ghost),
	}

	// workers finish out of order; process strictly by position
	buffer := make(map[int]prepared)
	next := 0
	for res := range results {
		buffer[res.pos] = res
		for {
			item, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			if err := st.step(ctx, item); err != nil {
				return sum, err
			}
			next++
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if next != len(frames) {
		return sum, fmt.Errorf("pre-pass produced %d of %d frames", next, len(frames))
	}

	if err := st.finish(ctx); err != nil {
		return sum, err
	}
	sum.Bursts = st.director.Bursts()
	p.log.Info("analysis complete",
		"frames", sum.Frames,
		"segments", len(sum.Segments),
		"insufficient", sum.Insufficient,
		"conflicts", sum.Conflicts,
	)
	return sum, nil
}

// prepass normalizes and measures frames on a bounded worker pool. Each worker only
// touches its own frame, so no state is shared.
func (p *Pipeline) prepass(ctx context.Context, frames []pose.RawFrame) <-chan prepared {
	tasks := make(chan int, p.cfg.Workers)
	results := make(chan prepared, p.cfg.Workers*2)

	var wg sync.WaitGroup
	for w := 0; w < p.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pos := range tasks {
				skel, err := normalize.Normalize(frames[pos], p.cfg.Normalize)
				sample, metricErrs := biomech.Measure(&skel, p.cfg.Biomech)
				select {
				case results <- prepared{pos: pos, skel: skel, sample: sample, normErr: err, metricErrs: metricErrs}:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(tasks)
		for pos := range frames {
			select {
			case tasks <- pos:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()
	return results
}

// ordered holds the stateful stages. It is only used from the Run goroutine.
type ordered struct {
	p          *Pipeline
	sinks      Sinks
	sum        *Summary
	engine     *biomech.Engine
	classifier *phase.Classifier
	director   *director.Director
	// event is the classifier's reset decision for the next frame
	event biomech.SegmentEvent
}

func (o *ordered) step(ctx context.Context, item prepared) error {
	log := o.p.log
	o.sum.Frames++

	var ile *normalize.InsufficientLandmarksError
	if errors.As(item.normErr, &ile) {
		o.sum.Insufficient++
		log.Debug("frame not normalized", "frame", ile.Index, "valid", ile.Valid, "needed", ile.Needed, "reason", ile.Reason)
	}
	for _, err := range item.metricErrs {
		o.sum.MetricErrors++
		log.Debug("metric invalidated", "error", err)
	}

	metrics := o.engine.Step(item.sample, o.event)
	res := o.classifier.Step(&metrics)
	o.event = res.Event

	if res.Conflict != nil {
		o.sum.Conflicts++
		log.Warn("conflicting phase transitions", "frame", res.Conflict.Index, "error", res.Conflict)
	}
	if res.Event.Reset {
		log.Debug("segment reset", "frame", metrics.Index, "segment", res.Tag.Segment, "shot", res.Tag.Shot)
	}

	rec := Record{Skeleton: item.skel, Metrics: metrics, Tag: res.Tag}
	for _, s := range o.sinks.Records {
		if err := s.WriteRecord(ctx, rec); err != nil {
			return fmt.Errorf("record sink failed at frame %d: %w", rec.Tag.Index, err)
		}
	}

	if res.Closed != nil {
		if err := o.segment(ctx, *res.Closed); err != nil {
			return err
		}
	}
	return o.emit(ctx, o.director.Push(director.Input{Skeleton: item.skel, Metrics: metrics, Tag: res.Tag}))
}

func (o *ordered) finish(ctx context.Context) error {
	if seg := o.classifier.Close(); seg != nil {
		if err := o.segment(ctx, *seg); err != nil {
			return err
		}
	}
	return o.emit(ctx, o.director.Flush())
}

func (o *ordered) segment(ctx context.Context, seg phase.Segment) error {
	o.sum.Segments = append(o.sum.Segments, seg)
	o.p.log.Info("segment detected", "segment", seg.ID, "start", seg.Start, "impact", seg.Impact, "end", seg.End, "shot", seg.Shot)
	for _, s := range o.sinks.Segments {
		if err := s.WriteSegment(ctx, seg); err != nil {
			return fmt.Errorf("segment sink failed for segment %d: %w", seg.ID, err)
		}
	}
	return nil
}

func (o *ordered) emit(ctx context.Context, dirs []director.Directive) error {
	for _, d := range dirs {
		for _, s := range o.sinks.Directives {
			if err := s.WriteDirective(ctx, d); err != nil {
				return fmt.Errorf("directive sink failed at frame %d: %w", d.Index, err)
			}
		}
	}
	return nil
}
