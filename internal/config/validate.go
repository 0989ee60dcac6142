package config

import (
	"errors"
	"fmt"

	"github.com/andresmejia3/crease/internal/pose"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	for _, check := range []func() error{
		c.validateSampling,
		c.validatePose,
		c.validateBiomech,
		c.validatePhase,
		c.validateShot,
		c.validateRender,
		c.validateStore,
		c.validateLogging,
	} {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateSampling() error {
	if c.Sampling.FPS <= 0 || c.Sampling.FPS > 240 {
		return fmt.Errorf("sampling.fps must be in (0, 240], got %g", c.Sampling.FPS)
	}
	if c.Sampling.Engines < 1 {
		return errors.New("sampling.engines must be at least 1")
	}
	if c.Sampling.Workers < 1 {
		return errors.New("sampling.workers must be at least 1")
	}
	return nil
}

func (c *Config) validatePose() error {
	if c.Pose.ModelComplexity < 0 || c.Pose.ModelComplexity > 2 {
		return fmt.Errorf("pose.model_complexity must be 0, 1 or 2, got %d", c.Pose.ModelComplexity)
	}
	for name, v := range map[string]float64{
		"pose.min_detection":        c.Pose.MinDetection,
		"pose.confidence_threshold": c.Pose.ConfidenceThreshold,
		"pose.min_valid_fraction":   c.Pose.MinValidFraction,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %g", name, v)
		}
	}
	return nil
}

func (c *Config) validateBiomech() error {
	if _, ok := pose.ParseSide(c.Biomech.Side); !ok {
		return fmt.Errorf("biomech.side must be \"right\" or \"left\", got %q", c.Biomech.Side)
	}
	switch c.Biomech.Smoothing {
	case "mean", "median":
	default:
		return fmt.Errorf("biomech.smoothing must be \"mean\" or \"median\", got %q", c.Biomech.Smoothing)
	}
	if c.Biomech.SmoothingWindow < 1 {
		return errors.New("biomech.smoothing_window must be at least 1")
	}
	if c.Biomech.VelocityWindow < 2 {
		return errors.New("biomech.velocity_window must be at least 2")
	}
	return nil
}

func (c *Config) validatePhase() error {
	p := c.Phase
	if p.Debounce < 1 {
		return errors.New("phase.debounce must be at least 1")
	}
	if p.ImpactMinSpeed <= 0 {
		return errors.New("phase.impact_min_speed must be positive")
	}
	if p.ImpactPercentile <= 0 || p.ImpactPercentile > 1 {
		return fmt.Errorf("phase.impact_percentile must be in (0, 1], got %g", p.ImpactPercentile)
	}
	if p.ImpactDecayRatio < 0 || p.ImpactDecayRatio >= 1 {
		return fmt.Errorf("phase.impact_decay_ratio must be in [0, 1), got %g", p.ImpactDecayRatio)
	}
	if p.ImpactHoldFrames < 1 {
		return errors.New("phase.impact_hold_frames must be at least 1")
	}
	if p.TrailingWindow < 1 {
		return errors.New("phase.trailing_window must be at least 1")
	}
	if p.LoadTimeoutFrames < 0 || p.FollowThroughMaxFrames < 0 {
		return errors.New("phase timeouts must not be negative (0 disables them)")
	}
	if p.IdleSpeed < 0 || p.IdleSpeed >= p.ImpactMinSpeed {
		return fmt.Errorf("phase.idle_speed must be in [0, impact_min_speed), got %g", p.IdleSpeed)
	}
	return nil
}

func (c *Config) validateShot() error {
	if c.Shot.Frames < 1 {
		return errors.New("shot.frames must be at least 1")
	}
	if c.Shot.UprightLean > c.Shot.ForwardLean {
		return errors.New("shot.upright_lean must not exceed shot.forward_lean")
	}
	_, err := c.shotRules()
	return err
}

func (c *Config) validateRender() error {
	r := c.Render
	if r.TrailLength < 0 {
		return errors.New("render.trail_length must not be negative")
	}
	if r.VelocityBarMax <= 0 {
		return errors.New("render.velocity_bar_max must be positive")
	}
	if r.ZoomEasing <= 0 || r.ZoomEasing > 1 {
		return fmt.Errorf("render.zoom_easing must be in (0, 1], got %g", r.ZoomEasing)
	}
	if r.MinZoom <= 0 || r.MinZoom > 1 {
		return fmt.Errorf("render.min_zoom must be in (0, 1], got %g", r.MinZoom)
	}
	if r.ZoomPadding < 0 {
		return errors.New("render.zoom_padding must not be negative")
	}
	if r.SlowMotionWidth < 1 || r.SlowMotionFactor < 1 {
		return errors.New("render.slow_motion_width and render.slow_motion_factor must be at least 1")
	}
	_, err := c.badges()
	return err
}

func (c *Config) validateStore() error {
	if c.Store.Enabled && c.Store.URL == "" {
		return errors.New("store.url is required when store.enabled is true (or set CREASE_DATABASE_URL)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
