// Package posetest builds synthetic estimator frames for tests.
package posetest

import (
	"math"
	"time"

	"github.com/andresmejia3/crease/internal/pose"
)

// Visibility is the confidence given to every generated landmark.
const Visibility = 0.9

const (
	shoulderHalfWidth = 0.05
	upperArm          = 0.12
	forearm           = 0.10
	handLength        = 0.05
)

// Batter describes a synthetic right-handed stance in image coordinates.
type Batter struct {
	// ElbowDeg is the angle at both elbows between upper arm and forearm.
	ElbowDeg float64
	// ShoulderYawDeg rotates the shoulder line about the vertical axis; arms follow rigidly.
	ShoulderYawDeg float64
	// WristOffsetX shifts both hands horizontally, simulating the bat swing. The elbows
	// follow so the elbow angle stays ElbowDeg.
	WristOffsetX float64
	// LeanDeg tilts the upper body forward (towards +x in the image).
	LeanDeg float64
}

// Stance is an upright batter with the elbows bent at 90 degrees.
func Stance() Batter {
	return Batter{ElbowDeg: 90}
}

// Landmarks renders the batter as 33 raw landmarks.
func (b Batter) Landmarks() [pose.JointCount]pose.RawLandmark {
	var lm [pose.JointCount]pose.RawLandmark
	set := func(j pose.Joint, x, y, z float64) {
		lm[j] = pose.RawLandmark{Name: j.String(), X: x, Y: y, Z: z, Confidence: Visibility}
	}

	hipY := 0.55
	torso := 0.25
	lean := b.LeanDeg * math.Pi / 180
	smx := 0.50 + torso*math.Sin(lean)
	smy := hipY - torso*math.Cos(lean)

	set(pose.LeftHip, 0.46, hipY, 0)
	set(pose.RightHip, 0.54, hipY, 0)
	set(pose.LeftKnee, 0.46, 0.72, 0)
	set(pose.RightKnee, 0.54, 0.72, 0)
	set(pose.LeftAnkle, 0.46, 0.90, 0)
	set(pose.RightAnkle, 0.54, 0.90, 0)
	set(pose.LeftHeel, 0.45, 0.92, 0)
	set(pose.RightHeel, 0.55, 0.92, 0)
	set(pose.LeftFootIndex, 0.43, 0.93, 0)
	set(pose.RightFootIndex, 0.57, 0.93, 0)

	set(pose.Nose, smx, smy-0.10, 0)
	set(pose.LeftEyeInner, smx-0.01, smy-0.11, 0)
	set(pose.LeftEye, smx-0.015, smy-0.11, 0)
	set(pose.LeftEyeOuter, smx-0.02, smy-0.11, 0)
	set(pose.RightEyeInner, smx+0.01, smy-0.11, 0)
	set(pose.RightEye, smx+0.015, smy-0.11, 0)
	set(pose.RightEyeOuter, smx+0.02, smy-0.11, 0)
	set(pose.LeftEar, smx-0.03, smy-0.10, 0)
	set(pose.RightEar, smx+0.03, smy-0.10, 0)
	set(pose.MouthLeft, smx-0.01, smy-0.08, 0)
	set(pose.MouthRight, smx+0.01, smy-0.08, 0)

	yaw := b.ShoulderYawDeg * math.Pi / 180
	dx := shoulderHalfWidth * math.Cos(yaw)
	dz := shoulderHalfWidth * math.Sin(yaw)

	theta := b.ElbowDeg * math.Pi / 180
	arm := func(sign float64, shoulder, elbow, wrist, index, pinky, thumb pose.Joint) {
		sx, sz := smx+sign*dx, sign*dz
		set(shoulder, sx, smy, sz)
		// forearm rotated theta away from the upper-arm direction (which points up from the elbow)
		wx := sx + sign*forearm*math.Sin(theta) + b.WristOffsetX
		wy := smy + upperArm - forearm*math.Cos(theta)
		ex, ey := elbowFor(sign, sx, smy, wx, wy, theta)
		set(elbow, ex, ey, sz)
		set(wrist, wx, wy, sz)
		set(index, wx, wy+handLength, sz)
		set(pinky, wx-0.005, wy+handLength, sz)
		set(thumb, wx+0.005, wy+handLength*0.6, sz)
	}
	arm(-1, pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist, pose.LeftIndex, pose.LeftPinky, pose.LeftThumb)
	arm(1, pose.RightShoulder, pose.RightElbow, pose.RightWrist, pose.RightIndex, pose.RightPinky, pose.RightThumb)
	return lm
}

// elbowFor places the elbow so the shoulder-elbow-wrist angle is exactly theta. The arm
// keeps its upper-arm to forearm ratio and stretches to reach the wrist; with no wrist
// offset it has its rest lengths. sign is -1 for the left arm and +1 for the right.
func elbowFor(sign, sx, sy, wx, wy, theta float64) (float64, float64) {
	rest := math.Sqrt(upperArm*upperArm + forearm*forearm - 2*upperArm*forearm*math.Cos(theta))
	dxw, dyw := wx-sx, wy-sy
	reach := math.Hypot(dxw, dyw)
	u := upperArm * reach / rest

	// angle at the shoulder between the wrist direction and the upper arm
	cosA := (upperArm*upperArm + rest*rest - forearm*forearm) / (2 * upperArm * rest)
	sinA := math.Sqrt(math.Max(0, 1-cosA*cosA))

	ux, uy := dxw/reach, dyw/reach
	nx, ny := -uy, ux
	return sx + u*(cosA*ux+sign*sinA*nx), sy + u*(cosA*uy+sign*sinA*ny)
}

// Frame renders the batter as an estimator frame.
func (b Batter) Frame(index int, ts time.Duration) pose.RawFrame {
	lm := b.Landmarks()
	return pose.RawFrame{Index: index, Timestamp: ts, Landmarks: lm[:]}
}

// Hide lowers the confidence of the given joints to zero.
func Hide(f pose.RawFrame, joints ...pose.Joint) pose.RawFrame {
	out := pose.RawFrame{Index: f.Index, Timestamp: f.Timestamp, Landmarks: make([]pose.RawLandmark, len(f.Landmarks))}
	copy(out.Landmarks, f.Landmarks)
	for i := range out.Landmarks {
		for _, j := range joints {
			if out.Landmarks[i].Name == j.String() {
				out.Landmarks[i].Confidence = 0
			}
		}
	}
	return out
}

// Empty is a frame in which no person was detected.
func Empty(index int, ts time.Duration) pose.RawFrame {
	return pose.RawFrame{Index: index, Timestamp: ts}
}

// Swing is the ten-frame scenario used by the end-to-end tests: steady stance, a load
// with 30 degrees of shoulder coil at frames 4-5, a hand-speed spike at frame 6, decaying
// follow-through and a settled final frame. The elbows flex from 90 to 45 degrees.
// Frames are indexed 1..10 at 10 fps.
func Swing() []pose.RawFrame {
	offsets := []float64{0, 0, 0, 0, 0, 0.10, 0.16, 0.20, 0.23, 0.23}
	frames := make([]pose.RawFrame, 0, len(offsets))
	for i := range offsets {
		n := i + 1
		b := Batter{
			ElbowDeg:     90 - 5*float64(i),
			WristOffsetX: offsets[i],
		}
		if n >= 4 {
			b.ShoulderYawDeg = 30
		}
		frames = append(frames, b.Frame(n, time.Duration(n)*100*time.Millisecond))
	}
	return frames
}
