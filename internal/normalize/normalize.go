// Package normalize turns raw estimator output into consistently scaled skeletons.
package normalize

import (
	"fmt"
	"math"

	"github.com/andresmejia3/crease/internal/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the per-frame normalization parameters.
type Config struct {
	// ConfidenceThreshold is the minimum visibility for a joint to count as valid.
	ConfidenceThreshold float64
	// MinValidFraction is the fraction of the 33 joints that must be valid.
	MinValidFraction float64
	// AspectRatio is frame width / height; x and z are stretched by it so distances
	// measured in image-normalized units are isotropic.
	AspectRatio float64
}

// DefaultConfig returns the thresholds used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.5,
		MinValidFraction:    0.5,
		AspectRatio:         1,
	}
}

// minScale guards against a collapsed torso producing enormous normalized coordinates.
const minScale = 1e-6

// InsufficientLandmarksError reports a frame that cannot be normalized. The frame is not
// dropped: callers keep the partially filled skeleton and mark its metrics invalid.
type InsufficientLandmarksError struct {
	Index  int
	Valid  int
	Needed int
	Reason string
}

func (e *InsufficientLandmarksError) Error() string {
	return fmt.Sprintf("frame %d: insufficient landmarks (%d valid, %d needed): %s", e.Index, e.Valid, e.Needed, e.Reason)
}

// Normalize builds a Skeleton from one raw frame. It keeps no state between calls.
func Normalize(raw pose.RawFrame, cfg Config) (pose.Skeleton, error) {
	skel := pose.Skeleton{Index: raw.Index, Timestamp: raw.Timestamp}

	seen := [pose.JointCount]bool{}
	for _, rl := range raw.Landmarks {
		j, ok := pose.ParseJoint(rl.Name)
		if !ok || seen[j] {
			continue
		}
		seen[j] = true
		lm := pose.Landmark{X: rl.X, Y: rl.Y, Z: rl.Z, Visibility: rl.Confidence}
		skel.Image[j] = lm
		skel.Valid[j] = lm.Finite() && lm.Visibility >= cfg.ConfidenceThreshold
	}

	needed := int(math.Ceil(cfg.MinValidFraction * pose.JointCount))
	valid := skel.ValidCount()
	fail := func(reason string) (pose.Skeleton, error) {
		skel.Incomplete = true
		return skel, &InsufficientLandmarksError{Index: raw.Index, Valid: valid, Needed: needed, Reason: reason}
	}

	if len(raw.Landmarks) == 0 {
		return fail("no person detected")
	}
	if valid < needed {
		return fail("below minimum valid fraction")
	}
	if !skel.AllValid(pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
		return fail("reference joints missing")
	}

	aspect := cfg.AspectRatio
	if aspect <= 0 {
		aspect = 1
	}
	// image space: y grows downward; body space: y up
	toBody := func(l pose.Landmark) r3.Vec {
		return r3.Vec{X: l.X * aspect, Y: -l.Y, Z: l.Z * aspect}
	}

	hipMid := pose.Midpoint(toBody(skel.Image[pose.LeftHip]), toBody(skel.Image[pose.RightHip]))
	shoulderMid := pose.Midpoint(toBody(skel.Image[pose.LeftShoulder]), toBody(skel.Image[pose.RightShoulder]))
	scale := r3.Norm(r3.Sub(shoulderMid, hipMid))
	if scale < minScale || math.IsNaN(scale) {
		return fail("degenerate torso length")
	}

	for j := 0; j < pose.JointCount; j++ {
		if !seen[j] {
			continue
		}
		v := r3.Scale(1/scale, r3.Sub(toBody(skel.Image[j]), hipMid))
		skel.Body[j] = pose.Landmark{X: v.X, Y: v.Y, Z: v.Z, Visibility: skel.Image[j].Visibility}
	}

	skel.Scaled = true
	skel.Scale = scale
	skel.Incomplete = !skel.AllValid(pose.RequiredJoints...)
	return skel, nil
}
