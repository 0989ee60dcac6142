package phase

// Sign buckets the X-factor around a dead band.
type Sign string

const (
	AnySign  Sign = "any"
	Positive Sign = "positive"
	Negative Sign = "negative"
	Neutral  Sign = "neutral"
)

// Lean buckets the trunk lean.
type Lean string

const (
	AnyLean  Lean = "any"
	Upright  Lean = "upright"
	Forward  Lean = "forward"
	DeepLean Lean = "deep"
)

// ShotRule is one row of the shot decision table. Rules are tried in order; the first
// match wins.
type ShotRule struct {
	Shot    Shot
	MinTilt float64
	MaxTilt float64
	XFactor Sign
	Lean    Lean
}

func (r ShotRule) matches(tilt float64, sign Sign, lean Lean) bool {
	if tilt < r.MinTilt || tilt > r.MaxTilt {
		return false
	}
	if r.XFactor != AnySign && r.XFactor != "" && r.XFactor != sign {
		return false
	}
	if r.Lean != AnyLean && r.Lean != "" && r.Lean != lean {
		return false
	}
	return true
}

// Config holds the state machine thresholds. Every value is a tuning parameter.
type Config struct {
	// Debounce (M) is the number of consecutive qualifying frames a trigger needs.
	Debounce int

	// SetupMaxTrunkLean is the largest trunk lean, in degrees, read as a set stance.
	SetupMaxTrunkLean float64
	// LoadXFactor is the |X-factor| in degrees that marks the load.
	LoadXFactor float64
	// LoadTimeoutFrames returns an abandoned load to IDLE; 0 disables it.
	LoadTimeoutFrames int

	// ImpactMinSpeed is the absolute floor of the wrist speed spike, in torso lengths/s.
	ImpactMinSpeed float64
	// ImpactSpikeFactor multiplies the trailing percentile to form the adaptive threshold.
	ImpactSpikeFactor float64
	// ImpactPercentile is the quantile (0..1) of the trailing wrist speeds.
	ImpactPercentile float64
	// TrailingWindow bounds the number of trailing speed samples.
	TrailingWindow int
	// ImpactHoldFrames is how many frames IMPACT lasts at most.
	ImpactHoldFrames int
	// ImpactDecayRatio ends IMPACT early once speed falls below this fraction of the peak.
	ImpactDecayRatio float64

	// IdleSpeed is the wrist speed below which the follow-through has settled.
	IdleSpeed float64
	// FollowThroughMaxFrames returns to IDLE regardless of speed; 0 disables it.
	FollowThroughMaxFrames int

	// ShotFrames is the number of frames up to and including impact averaged for the
	// shot decision.
	ShotFrames int
	// XFactorDeadband is the |X-factor| below which the sign reads as neutral.
	XFactorDeadband float64
	// UprightLean and ForwardLean are the upper bounds of the upright and forward buckets.
	UprightLean float64
	ForwardLean float64
	Rules       []ShotRule
}

// DefaultRules is the shipped shot decision table.
func DefaultRules() []ShotRule {
	return []ShotRule{
		{Shot: Defensive, MinTilt: -90, MaxTilt: -60, XFactor: Neutral, Lean: AnyLean},
		{Shot: Drive, MinTilt: -90, MaxTilt: -30, XFactor: Positive, Lean: AnyLean},
		{Shot: Pull, MinTilt: -30, MaxTilt: 30, XFactor: Positive, Lean: Upright},
		{Shot: Cut, MinTilt: -30, MaxTilt: 30, XFactor: Negative, Lean: AnyLean},
		{Shot: Defensive, MinTilt: -90, MaxTilt: -30, XFactor: AnySign, Lean: DeepLean},
	}
}

// DefaultConfig returns the classifier defaults.
func DefaultConfig() Config {
	return Config{
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
		ShotFrames:             3,
		XFactorDeadband:        10,
		UprightLean:            15,
		ForwardLean:            35,
		Rules:                  DefaultRules(),
	}
}
