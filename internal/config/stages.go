package config

import (
	"fmt"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/worker"
)

// Side returns the configured batting side.
func (c *Config) Side() pose.Side {
	s, _ := pose.ParseSide(c.Biomech.Side)
	return s
}

// NormalizeConfig returns the normalizer settings for frames of the given width/height.
func (c *Config) NormalizeConfig(aspect float64) normalize.Config {
	if aspect <= 0 {
		aspect = 1
	}
	return normalize.Config{
		ConfidenceThreshold: c.Pose.ConfidenceThreshold,
		MinValidFraction:    c.Pose.MinValidFraction,
		AspectRatio:         aspect,
	}
}

// BiomechConfig returns the metric engine settings.
func (c *Config) BiomechConfig() biomech.Config {
	return biomech.Config{
		Side:            c.Side(),
		SmoothingWindow: c.Biomech.SmoothingWindow,
		Smoothing:       biomech.Smoothing(c.Biomech.Smoothing),
		VelocityWindow:  c.Biomech.VelocityWindow,
	}
}

// PhaseConfig returns the classifier settings. It assumes Validate has passed.
func (c *Config) PhaseConfig() phase.Config {
	rules, _ := c.shotRules()
	return phase.Config{
		Debounce:               c.Phase.Debounce,
		SetupMaxTrunkLean:      c.Phase.SetupMaxTrunkLean,
		LoadXFactor:            c.Phase.LoadXFactor,
		LoadTimeoutFrames:      c.Phase.LoadTimeoutFrames,
		ImpactMinSpeed:         c.Phase.ImpactMinSpeed,
		ImpactSpikeFactor:      c.Phase.ImpactSpikeFactor,
		ImpactPercentile:       c.Phase.ImpactPercentile,
		TrailingWindow:         c.Phase.TrailingWindow,
		ImpactHoldFrames:       c.Phase.ImpactHoldFrames,
		ImpactDecayRatio:       c.Phase.ImpactDecayRatio,
		IdleSpeed:              c.Phase.IdleSpeed,
		FollowThroughMaxFrames: c.Phase.FollowThroughMaxFrames,
		ShotFrames:             c.Shot.Frames,
		XFactorDeadband:        c.Shot.XFactorDeadband,
		UprightLean:            c.Shot.UprightLean,
		ForwardLean:            c.Shot.ForwardLean,
		Rules:                  rules,
	}
}

// DirectorConfig returns the render director settings. It assumes Validate has passed.
func (c *Config) DirectorConfig() director.Config {
	badges, _ := c.badges()
	return director.Config{
		Side:             c.Side(),
		TrailLength:      c.Render.TrailLength,
		Badges:           badges,
		VelocityBarMax:   c.Render.VelocityBarMax,
		ZoomPadding:      c.Render.ZoomPadding,
		ZoomEasing:       c.Render.ZoomEasing,
		MinZoom:          c.Render.MinZoom,
		SlowMotionWidth:  c.Render.SlowMotionWidth,
		SlowMotionFactor: c.Render.SlowMotionFactor,
	}
}

// WorkerConfig returns the estimator process settings.
func (c *Config) WorkerConfig() worker.Config {
	return worker.Config{
		Python:          c.Paths.Python,
		Script:          c.Paths.WorkerScript,
		ModelComplexity: c.Pose.ModelComplexity,
		MinDetection:    c.Pose.MinDetection,
	}
}

func (c *Config) shotRules() ([]phase.ShotRule, error) {
	if len(c.Shot.Rules) == 0 {
		return phase.DefaultRules(), nil
	}
	rules := make([]phase.ShotRule, 0, len(c.Shot.Rules))
	for i, r := range c.Shot.Rules {
		shot, ok := phase.ParseShot(r.Shot)
		if !ok {
			return nil, fmt.Errorf("shot.rules[%d]: unknown shot %q", i, r.Shot)
		}
		sign := phase.Sign(r.XFactor)
		switch sign {
		case "", phase.AnySign, phase.Positive, phase.Negative, phase.Neutral:
		default:
			return nil, fmt.Errorf("shot.rules[%d]: unknown x_factor %q", i, r.XFactor)
		}
		lean := phase.Lean(r.Lean)
		switch lean {
		case "", phase.AnyLean, phase.Upright, phase.Forward, phase.DeepLean:
		default:
			return nil, fmt.Errorf("shot.rules[%d]: unknown lean %q", i, r.Lean)
		}
		if r.MinTilt > r.MaxTilt {
			return nil, fmt.Errorf("shot.rules[%d]: min_tilt %g above max_tilt %g", i, r.MinTilt, r.MaxTilt)
		}
		rules = append(rules, phase.ShotRule{Shot: shot, MinTilt: r.MinTilt, MaxTilt: r.MaxTilt, XFactor: sign, Lean: lean})
	}
	return rules, nil
}

func (c *Config) badges() ([]director.BadgeSpec, error) {
	if len(c.Render.Badges) == 0 {
		return director.DefaultBadges(), nil
	}
	out := make([]director.BadgeSpec, 0, len(c.Render.Badges))
	for i, b := range c.Render.Badges {
		id, ok := biomech.ParseMetric(b.Metric)
		if !ok {
			return nil, fmt.Errorf("render.badges[%d]: unknown metric %q", i, b.Metric)
		}
		for _, r := range [][2]float64{b.Green, b.Amber} {
			if r[0] > r[1] {
				return nil, fmt.Errorf("render.badges[%d]: range [%g, %g] is inverted", i, r[0], r[1])
			}
		}
		label := b.Label
		if label == "" {
			label = b.Metric
		}
		out = append(out, director.BadgeSpec{
			Metric: id,
			Label:  label,
			Green:  director.Range{Min: b.Green[0], Max: b.Green[1]},
			Amber:  director.Range{Min: b.Amber[0], Max: b.Amber[1]},
		})
	}
	return out, nil
}
