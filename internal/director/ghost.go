package director

import (
	"encoding/json"
	"fmt"
	"io"
	"math"

	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/pose"
)

// GhostPose is a reference skeleton placed over the live one.
type GhostPose struct {
	Points [pose.JointCount]Point
	Valid  [pose.JointCount]bool
}

// Ghost is a recorded reference swing replayed alongside the live skeleton.
type Ghost struct {
	frames []pose.Skeleton
}

// NewGhost wraps an already normalized reference sequence.
func NewGhost(frames []pose.Skeleton) *Ghost {
	return &Ghost{frames: frames}
}

// LoadGhost reads a reference sequence written by `crease analyze --landmarks`: a JSON
// array of raw estimator frames.
func LoadGhost(r io.Reader, cfg normalize.Config) (*Ghost, error) {
	var raw []pose.RawFrame
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode ghost reference: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("ghost reference has no frames")
	}
	frames := make([]pose.Skeleton, len(raw))
	for i, f := range raw {
		// frames without a usable torso are kept; Align skips them
		frames[i], _ = normalize.Normalize(f, cfg)
	}
	return NewGhost(frames), nil
}

// Len returns the number of reference frames.
func (g *Ghost) Len() int { return len(g.frames) }

// Align maps reference frame offset onto the live skeleton: the reference is moved so
// its hip midpoint sits on the live hip midpoint and scaled to the live torso length.
// Offsets past the end hold the last reference frame.
func (g *Ghost) Align(offset int, live *pose.Skeleton) (GhostPose, bool) {
	var out GhostPose
	if len(g.frames) == 0 {
		return out, false
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(g.frames) {
		offset = len(g.frames) - 1
	}
	ref := &g.frames[offset]

	liveHip, liveTorso, ok := anchor(live)
	if !ok {
		return out, false
	}
	refHip, refTorso, ok := anchor(ref)
	if !ok {
		return out, false
	}
	s := liveTorso / refTorso

	for j := 0; j < pose.JointCount; j++ {
		if !ref.Valid[j] {
			continue
		}
		p := ref.Image[j]
		out.Points[j] = Point{
			X: liveHip.X + (p.X-refHip.X)*s,
			Y: liveHip.Y + (p.Y-refHip.Y)*s,
		}
		out.Valid[j] = true
	}
	return out, true
}

// anchor returns the image-space hip midpoint and torso length.
func anchor(s *pose.Skeleton) (Point, float64, bool) {
	if !s.AllValid(pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip) {
		return Point{}, 0, false
	}
	img := s.Image
	hip := Point{(img[pose.LeftHip].X + img[pose.RightHip].X) / 2, (img[pose.LeftHip].Y + img[pose.RightHip].Y) / 2}
	sh := Point{(img[pose.LeftShoulder].X + img[pose.RightShoulder].X) / 2, (img[pose.LeftShoulder].Y + img[pose.RightShoulder].Y) / 2}
	torso := math.Hypot(sh.X-hip.X, sh.Y-hip.Y)
	if torso < 1e-6 {
		return Point{}, 0, false
	}
	return hip, torso, true
}
