package render

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"

	"github.com/andresmejia3/crease/internal/director"
)

// VideoSink pairs directives with raw RGBA frames read from src (one decoded frame per
// sampled index, starting at 1) and writes the rendered frames to dst. It implements
// pipeline.DirectiveSink.
type VideoSink struct {
	src      io.Reader
	dst      io.Writer
	r        *Renderer
	frame    *image.RGBA
	next     int
	progress func()
	log      *slog.Logger

	// Frames counts rendered source frames, Written counts output frames including repeats.
	Frames, Written int
	// Missing counts directives that arrived after the source ran out.
	Missing int
}

// NewVideoSink creates a sink for frames of the renderer's size. progress may be nil.
func NewVideoSink(src io.Reader, dst io.Writer, r *Renderer, progress func(), logger *slog.Logger) *VideoSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &VideoSink{
		src:      src,
		dst:      dst,
		r:        r,
		frame:    image.NewRGBA(image.Rect(0, 0, r.width, r.height)),
		next:     1,
		progress: progress,
		log:      logger.With("component", "render"),
	}
}

// WriteDirective renders the source frame matching d.Index. Source frames before it are
// skipped. Once the source is exhausted further directives are counted and dropped.
func (s *VideoSink) WriteDirective(ctx context.Context, d director.Directive) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.Missing > 0 {
		s.Missing++
		return nil
	}
	for s.next <= d.Index {
		if _, err := io.ReadFull(s.src, s.frame.Pix); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				s.log.Warn("decoded video ended before the analysis", "frame", d.Index)
				s.Missing++
				return nil
			}
			return fmt.Errorf("failed to read frame %d: %w", s.next, err)
		}
		s.next++
	}
	if s.next-1 != d.Index {
		return fmt.Errorf("directive %d arrived after frame %d", d.Index, s.next-1)
	}

	out, repeat := s.r.Render(s.frame, &d)
	for i := 0; i < repeat; i++ {
		if _, err := s.dst.Write(out.Pix); err != nil {
			return fmt.Errorf("failed to write frame %d: %w", d.Index, err)
		}
		s.Written++
	}
	s.Frames++
	if s.progress != nil {
		s.progress()
	}
	return nil
}
