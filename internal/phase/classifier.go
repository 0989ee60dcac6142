package phase

import (
	"math"
	"sort"

	"github.com/andresmejia3/crease/internal/biomech"
	"gonum.org/v1/gonum/stat"
)

// Result is everything the classifier decides for one frame.
type Result struct {
	Tag Tag
	// Event must be handed to the engine together with the next frame's sample.
	Event biomech.SegmentEvent
	// Closed is set on the frame that ends a segment.
	Closed *Segment
	// Conflict is set when more than one transition fired on this frame.
	Conflict *StateError
}

// Classifier is the swing state machine. It keeps a bounded amount of history and must
// be fed frames in order; it is not safe for concurrent use.
type Classifier struct {
	cfg   Config
	state Phase
	// age counts frames spent in the current state, excluding the entering frame.
	age  int
	runs [len(phaseNames)]int

	trailing []float64
	sorted   []float64
	peak     float64

	nextID   int
	current  *Segment
	impacted bool
	recent   []biomech.MetricFrame
	last     int
}

// New creates a classifier in the IDLE state.
func New(cfg Config) *Classifier {
	if cfg.Debounce < 1 {
		cfg.Debounce = 1
	}
	if cfg.ShotFrames < 1 {
		cfg.ShotFrames = 1
	}
	if cfg.TrailingWindow < 1 {
		cfg.TrailingWindow = 1
	}
	cfg.ImpactPercentile = math.Max(0, math.Min(1, cfg.ImpactPercentile))
	if cfg.Rules == nil {
		cfg.Rules = DefaultRules()
	}
	return &Classifier{
		cfg:      cfg,
		state:    Idle,
		trailing: make([]float64, 0, cfg.TrailingWindow),
		recent:   make([]biomech.MetricFrame, 0, cfg.ShotFrames),
	}
}

// State returns the current state of the machine.
func (c *Classifier) State() Phase { return c.state }

// Step evaluates one transition for a metric frame.
func (c *Classifier) Step(f *biomech.MetricFrame) Result {
	c.age++
	if len(c.recent) == c.cfg.ShotFrames {
		copy(c.recent, c.recent[1:])
		c.recent = c.recent[:len(c.recent)-1]
	}
	c.recent = append(c.recent, *f)

	var res Result
	speed := f.Get(biomech.WristSpeed)
	spike := speed.Valid && speed.Raw > c.threshold()

	var fired []Phase
	switch c.state {
	case Idle, Unknown:
		lean := f.Get(biomech.TrunkLean)
		if c.debounce(Setup, lean.Valid && lean.Value <= c.cfg.SetupMaxTrunkLean) {
			fired = append(fired, Setup)
		}
	case Setup:
		xf := f.Get(biomech.XFactor)
		if c.debounce(Load, xf.Valid && math.Abs(xf.Value) >= c.cfg.LoadXFactor) {
			fired = append(fired, Load)
		}
		if c.debounce(Impact, spike) {
			fired = append(fired, Impact)
		}
	case Load:
		if c.debounce(Impact, spike) {
			fired = append(fired, Impact)
		}
		if c.cfg.LoadTimeoutFrames > 0 && c.age >= c.cfg.LoadTimeoutFrames {
			fired = append(fired, Idle)
		}
	case Impact:
		held := c.age >= c.cfg.ImpactHoldFrames
		decayed := speed.Valid && speed.Raw < c.cfg.ImpactDecayRatio*c.peak
		if c.debounce(FollowThrough, held || decayed) {
			fired = append(fired, FollowThrough)
		}
	case FollowThrough:
		settled := speed.Valid && speed.Value < c.cfg.IdleSpeed
		timedOut := c.cfg.FollowThroughMaxFrames > 0 && c.age >= c.cfg.FollowThroughMaxFrames
		if c.debounce(Idle, settled) || timedOut {
			fired = append(fired, Idle)
		}
	}

	if speed.Valid && !spike && (c.state == Idle || c.state == Setup || c.state == Load) {
		c.observe(speed.Raw)
	}
	if c.state == Impact && speed.Valid {
		c.peak = math.Max(c.peak, speed.Raw)
	}

	if len(fired) > 0 {
		to := fired[0]
		for _, p := range fired[1:] {
			if p.priority() > to.priority() {
				to = p
			}
		}
		if len(fired) > 1 {
			res.Conflict = &StateError{Index: f.Index, From: c.state, Candidates: fired, Chosen: to}
		}
		c.enter(to, f, &res)
	}

	res.Tag = Tag{Index: f.Index, Phase: c.state}
	if c.current != nil {
		res.Tag.Segment = c.current.ID
		res.Tag.Shot = c.current.Shot
	}
	if !f.AnyValid() {
		res.Tag.Phase = Unknown
		res.Tag.Shot = ""
	}
	c.last = f.Index
	return res
}

// Close ends the stream. A segment that reached impact but never settled is returned
// with the last seen frame as its end.
func (c *Classifier) Close() *Segment {
	if c.current == nil || !c.impacted {
		c.current = nil
		return nil
	}
	seg := *c.current
	seg.End = c.last
	c.current = nil
	return &seg
}

func (c *Classifier) debounce(target Phase, ok bool) bool {
	if !ok {
		c.runs[target] = 0
		return false
	}
	c.runs[target]++
	return c.runs[target] >= c.cfg.Debounce
}

func (c *Classifier) enter(to Phase, f *biomech.MetricFrame, res *Result) {
	c.state = to
	c.age = 0
	c.runs = [len(phaseNames)]int{}

	switch to {
	case Load:
		c.open(f.Index)
	case Impact:
		if c.current == nil {
			c.open(f.Index)
		}
		c.impacted = true
		c.current.Impact = f.Index
		c.current.Shot = c.shot()
		c.peak = f.Get(biomech.WristSpeed).Raw
		res.Event.Reset = true
	case Idle:
		// an abandoned load is not an action and is not reported
		if c.current != nil && c.impacted {
			seg := *c.current
			seg.End = c.last
			res.Closed = &seg
		}
		c.current = nil
		c.impacted = false
	}
}

func (c *Classifier) open(start int) {
	c.nextID++
	c.current = &Segment{ID: c.nextID, Start: start}
	c.impacted = false
}

// threshold is the adaptive spike level derived from the trailing speeds.
func (c *Classifier) threshold() float64 {
	if len(c.trailing) == 0 {
		return c.cfg.ImpactMinSpeed
	}
	c.sorted = append(c.sorted[:0], c.trailing...)
	sort.Float64s(c.sorted)
	q := stat.Quantile(c.cfg.ImpactPercentile, stat.Empirical, c.sorted, nil)
	return math.Max(c.cfg.ImpactMinSpeed, c.cfg.ImpactSpikeFactor*q)
}

func (c *Classifier) observe(v float64) {
	if len(c.trailing) == c.cfg.TrailingWindow {
		copy(c.trailing, c.trailing[1:])
		c.trailing = c.trailing[:len(c.trailing)-1]
	}
	c.trailing = append(c.trailing, v)
}
