package biomech

import (
	"time"

	"github.com/andresmejia3/crease/internal/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// Smoothing selects the moving filter applied to each metric.
type Smoothing string

const (
	Mean   Smoothing = "mean"
	Median Smoothing = "median"
)

// Config holds the engine parameters. It is copied into the engine and never mutated.
type Config struct {
	// Side is the bat-holding side used for elbow, knee, wrist and bat metrics.
	Side pose.Side
	// SmoothingWindow (K) is the number of valid samples averaged per metric.
	SmoothingWindow int
	Smoothing       Smoothing
	// VelocityWindow (N) is the number of frames spanned by finite differences.
	VelocityWindow int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Side:            pose.Right,
		SmoothingWindow: 3,
		Smoothing:       Mean,
		VelocityWindow:  3,
	}
}

// Sample holds the frame-local measurements of one skeleton. It is produced by Measure,
// which has no state, so samples may be computed concurrently.
type Sample struct {
	Index     int
	Timestamp time.Duration
	Values    [MetricCount]float64
	Valid     [MetricCount]bool
	// Wrist is the bat-side wrist position in body units, used for velocities.
	Wrist      r3.Vec
	WristValid bool
}

// Measure computes the frame-local metrics of a skeleton. Velocities are left invalid;
// they need neighbouring frames and are filled in by Engine.Step. Errors describe
// metrics invalidated by degenerate geometry; they are informational.
func Measure(skel *pose.Skeleton, cfg Config) (Sample, []error) {
	s := Sample{Index: skel.Index, Timestamp: skel.Timestamp}
	if !skel.Scaled {
		return s, nil
	}

	var errs []error
	set := func(id MetricID, v float64, err error) {
		if err != nil {
			errs = append(errs, &MetricError{Index: skel.Index, Metric: id, Err: err})
			return
		}
		s.Values[id] = v
		s.Valid[id] = true
	}
	at := skel.BodyVec

	shoulder, elbow, wrist, index := cfg.Side.Arm()
	if skel.AllValid(shoulder, elbow, wrist) {
		v, err := JointAngle(at(shoulder), at(elbow), at(wrist))
		set(ElbowAngle, v, err)
	}

	hip, knee, ankle := cfg.Side.Leg()
	if skel.AllValid(hip, knee, ankle) {
		v, err := JointAngle(at(hip), at(knee), at(ankle))
		set(KneeAngle, v, err)
	}

	torso := []pose.Joint{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip}
	if skel.AllValid(torso...) {
		hips := pose.Midpoint(at(pose.LeftHip), at(pose.RightHip))
		shoulders := pose.Midpoint(at(pose.LeftShoulder), at(pose.RightShoulder))
		v, err := Lean(hips, shoulders)
		set(TrunkLean, v, err)

		v, err = Separation(at(pose.LeftShoulder), at(pose.RightShoulder), at(pose.LeftHip), at(pose.RightHip), cfg.Side)
		set(XFactor, v, err)
	}

	if skel.AllValid(wrist, index) {
		v, err := Tilt(at(wrist), at(index))
		set(BatTilt, v, err)
	}

	if skel.Valid[wrist] {
		s.Wrist = at(wrist)
		s.WristValid = true
	}
	return s, errs
}
