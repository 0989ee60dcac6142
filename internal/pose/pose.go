// Package pose holds the landmark and skeleton records shared by every stage of the
// analysis pipeline.
package pose

import (
	"math"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Joint identifies one of the 33 MediaPipe Pose landmarks.
type Joint int

const (
	Nose Joint = iota
	LeftEyeInner
	LeftEye
	LeftEyeOuter
	RightEyeInner
	RightEye
	RightEyeOuter
	LeftEar
	RightEar
	MouthLeft
	MouthRight
	LeftShoulder
	RightShoulder
	LeftElbow
	RightElbow
	LeftWrist
	RightWrist
	LeftPinky
	RightPinky
	LeftIndex
	RightIndex
	LeftThumb
	RightThumb
	LeftHip
	RightHip
	LeftKnee
	RightKnee
	LeftAnkle
	RightAnkle
	LeftHeel
	RightHeel
	LeftFootIndex
	RightFootIndex
)

// JointCount is the fixed cardinality of every skeleton.
const JointCount = 33

var jointNames = [JointCount]string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

var jointsByName = func() map[string]Joint {
	m := make(map[string]Joint, JointCount)
	for i, n := range jointNames {
		m[n] = Joint(i)
	}
	return m
}()

func (j Joint) String() string {
	if j < 0 || int(j) >= JointCount {
		return "unknown"
	}
	return jointNames[j]
}

// ParseJoint resolves a landmark name as emitted by the estimator.
func ParseJoint(name string) (Joint, bool) {
	j, ok := jointsByName[name]
	return j, ok
}

// Side selects the bat-holding arm and leg used by side-specific metrics.
type Side int

const (
	Right Side = iota
	Left
)

// ParseSide accepts "right"/"left"; anything else reports false.
func ParseSide(s string) (Side, bool) {
	switch s {
	case "right", "":
		return Right, true
	case "left":
		return Left, true
	}
	return Right, false
}

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Arm returns the shoulder, elbow, wrist and index finger joints for a side.
func (s Side) Arm() (shoulder, elbow, wrist, index Joint) {
	if s == Left {
		return LeftShoulder, LeftElbow, LeftWrist, LeftIndex
	}
	return RightShoulder, RightElbow, RightWrist, RightIndex
}

// Leg returns the hip, knee and ankle joints for a side.
func (s Side) Leg() (hip, knee, ankle Joint) {
	if s == Left {
		return LeftHip, LeftKnee, LeftAnkle
	}
	return RightHip, RightKnee, RightAnkle
}

// RawLandmark is one tuple of the estimator output.
type RawLandmark struct {
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Confidence float64 `json:"visibility"`
}

// RawFrame is the estimator output for one sampled frame. An empty Landmarks slice marks
// a frame where no person was found; it still occupies its index.
type RawFrame struct {
	Index     int           `json:"index"`
	Timestamp time.Duration `json:"timestamp_ns"`
	Landmarks []RawLandmark `json:"landmarks"`
}

// Landmark is an immutable 3-D point with its confidence.
type Landmark struct {
	X, Y, Z    float64
	Visibility float64
}

// Vec returns the position as a gonum vector.
func (l Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// Finite reports whether all coordinates are usable numbers.
func (l Landmark) Finite() bool {
	for _, v := range [...]float64{l.X, l.Y, l.Z, l.Visibility} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Skeleton is the per-frame set of landmarks in two coordinate systems.
//
// Image holds the estimator's image-normalized coordinates and is what overlays are drawn
// from. Body holds hip-centred, torso-scaled, y-up coordinates used for measurement; it is
// only meaningful when Scaled is true.
type Skeleton struct {
	Index      int
	Timestamp  time.Duration
	Image      [JointCount]Landmark
	Body       [JointCount]Landmark
	Valid      [JointCount]bool
	Scaled     bool
	Incomplete bool
	Scale      float64
}

// ValidCount returns the number of joints above the confidence threshold.
func (s *Skeleton) ValidCount() int {
	n := 0
	for _, ok := range s.Valid {
		if ok {
			n++
		}
	}
	return n
}

// AllValid reports whether every listed joint is valid.
func (s *Skeleton) AllValid(joints ...Joint) bool {
	for _, j := range joints {
		if !s.Valid[j] {
			return false
		}
	}
	return true
}

// BodyVec returns the normalized position of a joint.
func (s *Skeleton) BodyVec(j Joint) r3.Vec {
	return s.Body[j].Vec()
}

// Midpoint returns the midpoint of two vectors.
func Midpoint(a, b r3.Vec) r3.Vec {
	return r3.Scale(0.5, r3.Add(a, b))
}
