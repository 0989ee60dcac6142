package config

const (
	defaultOutputDir    = "./output"
	defaultPoseCache    = "~/.cache/crease/pose.db"
	defaultPython       = "python3"
	defaultWorkerScript = "python/worker.py"
	defaultFPS          = 15
	defaultEngines      = 2
	defaultWorkers      = 4
	defaultLogFormat    = "console"
	defaultLogLevel     = "info"
)

// Default returns a Config populated with repository defaults. The shot rules and badges
// stay empty and resolve to the built-in tables unless a file provides its own.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:    defaultOutputDir,
			PoseCache:    defaultPoseCache,
			Python:       defaultPython,
			WorkerScript: defaultWorkerScript,
		},
		Sampling: Sampling{
			FPS:     defaultFPS,
			Engines: defaultEngines,
			Workers: defaultWorkers,
		},
		Pose: Pose{
			ModelComplexity:     1,
			MinDetection:        0.5,
			ConfidenceThreshold: 0.5,
			MinValidFraction:    0.5,
			Cache:               true,
		},
		Biomech: Biomech{
			Side:            "right",
			SmoothingWindow: 3,
			Smoothing:       "mean",
			VelocityWindow:  3,
		},
		Phase: Phase{
			Debounce:               2,
			SetupMaxTrunkLean:      35,
			LoadXFactor:            20,
			LoadTimeoutFrames:      90,
			ImpactMinSpeed:         2.5,
			ImpactSpikeFactor:      2,
			ImpactPercentile:       0.9,
			TrailingWindow:         30,
			ImpactHoldFrames:       2,
			ImpactDecayRatio:       0.5,
			IdleSpeed:              0.6,
			FollowThroughMaxFrames: 45,
		},
		Shot: Shot{
			Frames:          3,
			XFactorDeadband: 10,
			UprightLean:     15,
			ForwardLean:     35,
		},
		Render: Render{
			Enabled:          true,
			TrailLength:      15,
			VelocityBarMax:   8,
			ZoomPadding:      0.15,
			ZoomEasing:       0.2,
			MinZoom:          0.35,
			SlowMotionWidth:  9,
			SlowMotionFactor: 4,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
