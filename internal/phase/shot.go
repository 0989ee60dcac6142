package phase

import (
	"math"

	"github.com/andresmejia3/crease/internal/biomech"
	"gonum.org/v1/gonum/stat"
)

// shot labels the open segment from the frames leading up to and including impact.
func (c *Classifier) shot() Shot {
	tilt, okTilt := c.average(biomech.BatTilt)
	xf, okXF := c.average(biomech.XFactor)
	lean, okLean := c.average(biomech.TrunkLean)
	if !okTilt || !okXF || !okLean {
		return Unclassified
	}
	return Decide(c.cfg, tilt, xf, lean)
}

// Decide runs the decision table over averaged impact metrics.
func Decide(cfg Config, tilt, xFactor, lean float64) Shot {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	sign := signOf(xFactor, cfg.XFactorDeadband)
	bucket := bucketOf(lean, cfg.UprightLean, cfg.ForwardLean)
	for _, r := range rules {
		if r.matches(tilt, sign, bucket) {
			return r.Shot
		}
	}
	return Unclassified
}

func signOf(v, deadband float64) Sign {
	switch {
	case math.Abs(v) < deadband:
		return Neutral
	case v > 0:
		return Positive
	default:
		return Negative
	}
}

func bucketOf(lean, upright, forward float64) Lean {
	switch {
	case lean <= upright:
		return Upright
	case lean <= forward:
		return Forward
	default:
		return DeepLean
	}
}

func (c *Classifier) average(id biomech.MetricID) (float64, bool) {
	vals := make([]float64, 0, len(c.recent))
	for i := range c.recent {
		if m := c.recent[i].Get(id); m.Valid {
			vals = append(vals, m.Value)
		}
	}
	if len(vals) == 0 {
		return 0, false
	}
	return stat.Mean(vals, nil), true
}
