package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file locations.
type Paths struct {
	OutputDir    string `toml:"output_dir"`
	PoseCache    string `toml:"pose_cache"`
	Python       string `toml:"python"`
	WorkerScript string `toml:"worker_script"`
}

// Sampling controls how frames are pulled from the video and fanned out.
type Sampling struct {
	// FPS is the analysis sampling rate; the rendered video plays at the same rate.
	FPS float64 `toml:"fps"`
	// Engines is the number of pose estimator processes.
	Engines int `toml:"engines"`
	// Workers is the number of goroutines in the per-frame analysis pre-pass.
	Workers int `toml:"workers"`
}

// Pose contains estimator and normalizer settings.
type Pose struct {
	ModelComplexity     int     `toml:"model_complexity"`
	MinDetection        float64 `toml:"min_detection"`
	ConfidenceThreshold float64 `toml:"confidence_threshold"`
	MinValidFraction    float64 `toml:"min_valid_fraction"`
	Cache               bool    `toml:"cache"`
}

// Biomech contains metric engine settings.
type Biomech struct {
	Side            string `toml:"side"`
	SmoothingWindow int    `toml:"smoothing_window"`
	Smoothing       string `toml:"smoothing"`
	VelocityWindow  int    `toml:"velocity_window"`
}

// Phase contains the phase state machine thresholds.
type Phase struct {
	Debounce               int     `toml:"debounce"`
	SetupMaxTrunkLean      float64 `toml:"setup_max_trunk_lean"`
	LoadXFactor            float64 `toml:"load_x_factor"`
	LoadTimeoutFrames      int     `toml:"load_timeout_frames"`
	ImpactMinSpeed         float64 `toml:"impact_min_speed"`
	ImpactSpikeFactor      float64 `toml:"impact_spike_factor"`
	ImpactPercentile       float64 `toml:"impact_percentile"`
	TrailingWindow         int     `toml:"trailing_window"`
	ImpactHoldFrames       int     `toml:"impact_hold_frames"`
	ImpactDecayRatio       float64 `toml:"impact_decay_ratio"`
	IdleSpeed              float64 `toml:"idle_speed"`
	FollowThroughMaxFrames int     `toml:"follow_through_max_frames"`
}

// ShotRule is one row of the shot decision table.
type ShotRule struct {
	Shot    string  `toml:"shot"`
	MinTilt float64 `toml:"min_tilt"`
	MaxTilt float64 `toml:"max_tilt"`
	XFactor string  `toml:"x_factor"`
	Lean    string  `toml:"lean"`
}

// Shot contains the shot classifier settings.
type Shot struct {
	Frames          int        `toml:"frames"`
	XFactorDeadband float64    `toml:"x_factor_deadband"`
	UprightLean     float64    `toml:"upright_lean"`
	ForwardLean     float64    `toml:"forward_lean"`
	Rules           []ShotRule `toml:"rules"`
}

// Badge configures one metric badge. Green and Amber are [min, max] pairs.
type Badge struct {
	Metric string     `toml:"metric"`
	Label  string     `toml:"label"`
	Green  [2]float64 `toml:"green"`
	Amber  [2]float64 `toml:"amber"`
}

// Render contains the overlay and camera settings.
type Render struct {
	Enabled          bool    `toml:"enabled"`
	TrailLength      int     `toml:"trail_length"`
	VelocityBarMax   float64 `toml:"velocity_bar_max"`
	ZoomPadding      float64 `toml:"zoom_padding"`
	ZoomEasing       float64 `toml:"zoom_easing"`
	MinZoom          float64 `toml:"min_zoom"`
	SlowMotionWidth  int     `toml:"slow_motion_width"`
	SlowMotionFactor int     `toml:"slow_motion_factor"`
	Badges           []Badge `toml:"badges"`
}

// Store contains the optional PostgreSQL run archive settings.
type Store struct {
	Enabled bool   `toml:"enabled"`
	URL     string `toml:"url"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for crease.
//
// Configuration sections by subsystem:
//   - Paths: output directory, pose cache and estimator script
//   - Sampling: frame rate and worker counts
//   - Pose: estimator and normalizer thresholds
//   - Biomech: batting side, smoothing and velocity windows
//   - Phase: state machine thresholds
//   - Shot: shot decision table
//   - Render: overlays, zoom and slow motion
//   - Store: PostgreSQL run archive
//   - Logging: log format and level
type Config struct {
	Paths    Paths    `toml:"paths"`
	Sampling Sampling `toml:"sampling"`
	Pose     Pose     `toml:"pose"`
	Biomech  Biomech  `toml:"biomech"`
	Phase    Phase    `toml:"phase"`
	Shot     Shot     `toml:"shot"`
	Render   Render   `toml:"render"`
	Store    Store    `toml:"store"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/crease/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("crease.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if c.Paths.PoseCache, err = expandPath(c.Paths.PoseCache); err != nil {
		return fmt.Errorf("paths.pose_cache: %w", err)
	}
	if c.Paths.WorkerScript, err = expandPath(c.Paths.WorkerScript); err != nil {
		return fmt.Errorf("paths.worker_script: %w", err)
	}
	c.Paths.Python = strings.TrimSpace(c.Paths.Python)
	if c.Paths.Python == "" {
		c.Paths.Python = defaultPython
	}
	c.Biomech.Side = strings.ToLower(strings.TrimSpace(c.Biomech.Side))
	c.Biomech.Smoothing = strings.ToLower(strings.TrimSpace(c.Biomech.Smoothing))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Store.URL == "" {
		if value, ok := os.LookupEnv("CREASE_DATABASE_URL"); ok {
			c.Store.URL = value
		}
	}
	return nil
}

// CreateSample writes the commented sample configuration to path.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Marshal encodes the configuration as TOML with the database password redacted.
func Marshal(c *Config) ([]byte, error) {
	out := *c
	if u, err := url.Parse(out.Store.URL); err == nil && u.User != nil {
		out.Store.URL = u.Redacted()
	}
	return toml.Marshal(out)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
