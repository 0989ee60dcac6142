// Package director decides, frame by frame, what the renderer draws: overlays, swing
// trail, metric badges, zoom window and slow-motion bursts.
package director

import (
	"time"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
)

// Point is a position in image-normalized coordinates.
type Point struct {
	X, Y float64
}

// Badge is a metric value to display.
type Badge struct {
	Metric biomech.MetricID
	Label  string
	Value  float64
	Color  Color
	// Stale marks a value carried over from an earlier frame because the current one
	// is invalid.
	Stale bool
	// Present is false until the metric has been valid at least once.
	Present bool
}

// Burst is an inclusive frame range played in slow motion.
type Burst struct {
	Start, End int
}

// Contains reports whether a frame index falls in the burst.
func (b Burst) Contains(i int) bool { return i >= b.Start && i <= b.End }

// Directive is everything the renderer needs for one frame.
type Directive struct {
	Index     int
	Timestamp time.Duration
	Skeleton  pose.Skeleton
	// LowConfidence asks for the skeleton to be drawn with a warning marker.
	LowConfidence bool

	Phase   phase.Phase
	Segment int
	Shot    phase.Shot

	Side   pose.Side
	Trail  []Point
	Badges []Badge
	// Velocity is the bar fill in [0, 1]; zero when the speed is invalid.
	Velocity      float64
	VelocityValid bool
	Zoom          Rect

	SlowMotion bool
	// Repeat is how many times the frame is written to the output video.
	Repeat int

	Ghost *GhostPose
}

// Input is one frame of the ordered stream.
type Input struct {
	Skeleton pose.Skeleton
	Metrics  biomech.MetricFrame
	Tag      phase.Tag
}

// Director turns the ordered stream into directives. It delays output by half a burst
// window so bursts can start before the impact they are centred on. Not safe for
// concurrent use.
type Director struct {
	cfg   Config
	ghost *Ghost

	pending []Directive
	delay   int

	segment      int
	segmentStart int
	trail        []Point
	lastValid    [biomech.MetricCount]biomech.Metric
	zoom         Rect
	lastPhase    phase.Phase

	bursts []Burst
	// released is the number of bursts whose frames have all been released
	released int
}

// New creates a director. ghost may be nil.
func New(cfg Config, ghost *Ghost) *Director {
	if cfg.TrailLength < 0 {
		cfg.TrailLength = 0
	}
	if cfg.SlowMotionWidth < 1 {
		cfg.SlowMotionWidth = 1
	}
	if cfg.SlowMotionFactor < 1 {
		cfg.SlowMotionFactor = 1
	}
	if cfg.ZoomEasing <= 0 || cfg.ZoomEasing > 1 {
		cfg.ZoomEasing = 1
	}
	if cfg.Badges == nil {
		cfg.Badges = DefaultBadges()
	}
	return &Director{
		cfg:     cfg,
		ghost:   ghost,
		delay:   cfg.SlowMotionWidth / 2,
		trail:   make([]Point, 0, cfg.TrailLength),
		zoom:    FullFrame(),
		pending: make([]Directive, 0, cfg.SlowMotionWidth/2+1),
	}
}

// Bursts returns the slow-motion windows detected so far.
func (d *Director) Bursts() []Burst {
	out := make([]Burst, len(d.bursts))
	copy(out, d.bursts)
	return out
}

// Push adds a frame and returns the directives that are now final, in frame order.
func (d *Director) Push(in Input) []Directive {
	d.detectBurst(in.Tag)
	d.pending = append(d.pending, d.build(in))

	var out []Directive
	for len(d.pending) > d.delay {
		out = append(out, d.release())
	}
	return out
}

// Flush releases every buffered directive at the end of the stream.
func (d *Director) Flush() []Directive {
	out := make([]Directive, 0, len(d.pending))
	for len(d.pending) > 0 {
		out = append(out, d.release())
	}
	return out
}

func (d *Director) release() Directive {
	dir := d.pending[0]
	d.pending = d.pending[1:]

	for d.released < len(d.bursts) && d.bursts[d.released].End < dir.Index {
		d.released++
	}
	if d.released < len(d.bursts) && d.bursts[d.released].Contains(dir.Index) {
		dir.SlowMotion = true
		dir.Repeat = d.cfg.SlowMotionFactor
	}
	return dir
}

// detectBurst opens a burst on every transition into IMPACT. A burst that overlaps the
// previous one is merged into it.
func (d *Director) detectBurst(tag phase.Tag) {
	entering := tag.Phase == phase.Impact && d.lastPhase != phase.Impact
	if tag.Phase != phase.Unknown {
		d.lastPhase = tag.Phase
	}
	if !entering {
		return
	}
	start := tag.Index - d.delay
	b := Burst{Start: start, End: start + d.cfg.SlowMotionWidth - 1}
	if n := len(d.bursts); n > 0 && b.Start <= d.bursts[n-1].End {
		if b.End > d.bursts[n-1].End {
			d.bursts[n-1].End = b.End
		}
		return
	}
	d.bursts = append(d.bursts, b)
}

func (d *Director) build(in Input) Directive {
	skel := in.Skeleton
	dir := Directive{
		Index:         skel.Index,
		Timestamp:     skel.Timestamp,
		Skeleton:      skel,
		LowConfidence: skel.Incomplete,
		Phase:         in.Tag.Phase,
		Segment:       in.Tag.Segment,
		Shot:          in.Tag.Shot,
		Side:          d.cfg.Side,
		Repeat:        1,
	}

	if in.Tag.Segment != d.segment {
		d.segment = in.Tag.Segment
		d.segmentStart = skel.Index
		d.trail = d.trail[:0]
	}
	d.extendTrail(&skel)
	dir.Trail = append([]Point(nil), d.trail...)

	dir.Badges = d.badges(&in.Metrics)
	if ws := in.Metrics.Get(biomech.WristSpeed); ws.Valid && d.cfg.VelocityBarMax > 0 {
		dir.Velocity = clamp(ws.Value/d.cfg.VelocityBarMax, 0, 1)
		dir.VelocityValid = true
	}

	d.zoom = d.zoom.Ease(d.zoomTarget(&skel, in.Tag.Phase), d.cfg.ZoomEasing)
	dir.Zoom = d.zoom

	if d.ghost != nil {
		offset := 0
		if d.segment != 0 {
			offset = skel.Index - d.segmentStart
		}
		if g, ok := d.ghost.Align(offset, &skel); ok {
			dir.Ghost = &g
		}
	}
	return dir
}

func (d *Director) extendTrail(skel *pose.Skeleton) {
	if d.segment == 0 || d.cfg.TrailLength == 0 {
		return
	}
	_, _, wrist, _ := d.cfg.Side.Arm()
	if !skel.Valid[wrist] {
		return
	}
	if len(d.trail) == d.cfg.TrailLength {
		copy(d.trail, d.trail[1:])
		d.trail = d.trail[:len(d.trail)-1]
	}
	d.trail = append(d.trail, Point{X: skel.Image[wrist].X, Y: skel.Image[wrist].Y})
}

func (d *Director) badges(m *biomech.MetricFrame) []Badge {
	out := make([]Badge, 0, len(d.cfg.Badges))
	for _, spec := range d.cfg.Badges {
		b := Badge{Metric: spec.Metric, Label: spec.Label}
		cur := m.Get(spec.Metric)
		if cur.Valid {
			d.lastValid[spec.Metric] = cur
		} else {
			b.Stale = true
		}
		if last := d.lastValid[spec.Metric]; last.Valid {
			b.Present = true
			b.Value = last.Value
			b.Color = spec.Band(last.Value)
		}
		out = append(out, b)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
