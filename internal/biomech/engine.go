package biomech

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"
)

// SegmentEvent is the classifier's decision about the previous frame, carried forward to
// the engine alongside the next sample.
type SegmentEvent struct {
	// Reset re-seeds all smoothing buffers before the frame is processed.
	Reset bool
}

// Engine is the ordered, stateful half of the biomechanics stage. It must see samples in
// strictly increasing frame order; it is not safe for concurrent use.
type Engine struct {
	cfg     Config
	window  int
	buffers [MetricCount][]float64
	history []Sample
	scratch []float64
}

// NewEngine creates an engine. Non-positive window sizes fall back to the defaults.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.SmoothingWindow <= 0 {
		cfg.SmoothingWindow = def.SmoothingWindow
	}
	if cfg.VelocityWindow < 2 {
		cfg.VelocityWindow = 2
	}
	if cfg.Smoothing == "" {
		cfg.Smoothing = def.Smoothing
	}
	e := &Engine{cfg: cfg}
	for i := range e.buffers {
		e.buffers[i] = make([]float64, 0, cfg.SmoothingWindow)
	}
	e.history = make([]Sample, 0, cfg.VelocityWindow)
	e.scratch = make([]float64, 0, cfg.SmoothingWindow)
	return e
}

// Window returns the current smoothing window identifier.
func (e *Engine) Window() int { return e.window }

// Step publishes the metric frame for one sample.
func (e *Engine) Step(s Sample, ev SegmentEvent) MetricFrame {
	if ev.Reset {
		for i := range e.buffers {
			e.buffers[i] = e.buffers[i][:0]
		}
		e.window++
	}

	if len(e.history) == e.cfg.VelocityWindow {
		copy(e.history, e.history[1:])
		e.history = e.history[:len(e.history)-1]
	}
	e.history = append(e.history, s)

	raw := s.Values
	valid := s.Valid
	raw[WristSpeed], valid[WristSpeed] = e.wristSpeed()
	raw[ElbowAngularVelocity], valid[ElbowAngularVelocity] = e.elbowVelocity()

	out := MetricFrame{Index: s.Index, Timestamp: s.Timestamp, Window: e.window}
	for id := 0; id < MetricCount; id++ {
		if !valid[id] {
			continue
		}
		out.Values[id] = Metric{
			Value: e.smooth(MetricID(id), raw[id]),
			Raw:   raw[id],
			Valid: true,
		}
	}
	return out
}

// span returns the first and last samples of a full velocity window and the elapsed
// seconds between them.
func (e *Engine) span() (first, last Sample, dt float64, ok bool) {
	if len(e.history) < e.cfg.VelocityWindow {
		return first, last, 0, false
	}
	first, last = e.history[0], e.history[len(e.history)-1]
	dt = (last.Timestamp - first.Timestamp).Seconds()
	return first, last, dt, dt > 0
}

func (e *Engine) wristSpeed() (float64, bool) {
	first, last, dt, ok := e.span()
	if !ok {
		return 0, false
	}
	for _, h := range e.history {
		if !h.WristValid {
			return 0, false
		}
	}
	return r3.Norm(r3.Sub(last.Wrist, first.Wrist)) / dt, true
}

func (e *Engine) elbowVelocity() (float64, bool) {
	first, last, dt, ok := e.span()
	if !ok {
		return 0, false
	}
	for _, h := range e.history {
		if !h.Valid[ElbowAngle] {
			return 0, false
		}
	}
	return (last.Values[ElbowAngle] - first.Values[ElbowAngle]) / dt, true
}

func (e *Engine) smooth(id MetricID, v float64) float64 {
	buf := e.buffers[id]
	if len(buf) == e.cfg.SmoothingWindow {
		copy(buf, buf[1:])
		buf = buf[:len(buf)-1]
	}
	buf = append(buf, v)
	e.buffers[id] = buf

	if e.cfg.Smoothing == Median {
		e.scratch = append(e.scratch[:0], buf...)
		sort.Float64s(e.scratch)
		return median(e.scratch)
	}
	return stat.Mean(buf, nil)
}

// median of sorted values; even-length windows average the two middle samples.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
