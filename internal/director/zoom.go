package director

import (
	"math"

	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
)

// Rect is a crop window in image-normalized coordinates.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

// FullFrame is the uncropped frame.
func FullFrame() Rect { return Rect{0, 0, 1, 1} }

func (r Rect) Width() float64  { return r.X1 - r.X0 }
func (r Rect) Height() float64 { return r.Y1 - r.Y0 }

// Ease moves r towards target by the fraction alpha of the remaining distance.
func (r Rect) Ease(target Rect, alpha float64) Rect {
	lerp := func(a, b float64) float64 { return a + alpha*(b-a) }
	return Rect{
		X0: lerp(r.X0, target.X0),
		Y0: lerp(r.Y0, target.Y0),
		X1: lerp(r.X1, target.X1),
		Y1: lerp(r.Y1, target.Y1),
	}
}

// zoomTarget is the padded square around the joints relevant to the phase. Squares in
// normalized space keep the frame's aspect ratio when scaled back up. With no valid
// joints the current window is kept.
func (d *Director) zoomTarget(skel *pose.Skeleton, p phase.Phase) Rect {
	joints := allJoints
	if p == phase.Impact || p == phase.FollowThrough {
		joints = pose.UpperBody
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	n := 0
	for _, j := range joints {
		if !skel.Valid[j] {
			continue
		}
		l := skel.Image[j]
		minX, maxX = math.Min(minX, l.X), math.Max(maxX, l.X)
		minY, maxY = math.Min(minY, l.Y), math.Max(maxY, l.Y)
		n++
	}
	if n == 0 {
		return d.zoom
	}

	side := math.Max(maxX-minX, maxY-minY) * (1 + 2*d.cfg.ZoomPadding)
	side = clamp(math.Max(side, d.cfg.MinZoom), 0, 1)
	cx, cy := (minX+maxX)/2, (minY+maxY)/2

	x0 := clamp(cx-side/2, 0, 1-side)
	y0 := clamp(cy-side/2, 0, 1-side)
	return Rect{X0: x0, Y0: y0, X1: x0 + side, Y1: y0 + side}
}

var allJoints = func() []pose.Joint {
	js := make([]pose.Joint, pose.JointCount)
	for i := range js {
		js[i] = pose.Joint(i)
	}
	return js
}()
