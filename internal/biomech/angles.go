package biomech

import (
	"errors"
	"math"

	"github.com/andresmejia3/crease/internal/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerate is returned when a vector needed for an angle has (near) zero length.
var ErrDegenerate = errors.New("degenerate zero-length vector")

const epsilon = 1e-9

var up = r3.Vec{Y: 1}

func degrees(rad float64) float64 { return rad * 180 / math.Pi }

// JointAngle returns the angle at b formed by the bones b->a and b->c, in degrees within
// [0, 180].
func JointAngle(a, b, c r3.Vec) (float64, error) {
	u := r3.Sub(a, b)
	v := r3.Sub(c, b)
	nu, nv := r3.Norm(u), r3.Norm(v)
	if nu < epsilon || nv < epsilon {
		return 0, ErrDegenerate
	}
	cos := r3.Dot(u, v) / (nu * nv)
	cos = math.Max(-1, math.Min(1, cos))
	return degrees(math.Acos(cos)), nil
}

// Lean returns the angle between the vector from->to and the vertical axis, in [0, 180].
func Lean(from, to r3.Vec) (float64, error) {
	v := r3.Sub(to, from)
	n := r3.Norm(v)
	if n < epsilon {
		return 0, ErrDegenerate
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(v, up)/n))
	return degrees(math.Acos(cos)), nil
}

// Tilt returns the elevation of from->to above the horizontal plane, in [-90, 90].
func Tilt(from, to r3.Vec) (float64, error) {
	v := r3.Sub(to, from)
	n := r3.Norm(v)
	if n < epsilon {
		return 0, ErrDegenerate
	}
	sin := math.Max(-1, math.Min(1, v.Y/n))
	return degrees(math.Asin(sin)), nil
}

// yaw is the heading of a left->right line on the horizontal (x-z) plane.
func yaw(left, right r3.Vec) (float64, error) {
	dx, dz := right.X-left.X, right.Z-left.Z
	if math.Hypot(dx, dz) < epsilon {
		return 0, ErrDegenerate
	}
	return degrees(math.Atan2(dz, dx)), nil
}

// wrap maps an angle in degrees to (-180, 180].
func wrap(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg <= -180 {
		deg += 360
	} else if deg > 180 {
		deg -= 360
	}
	return deg
}

// Separation returns the X-factor: the yaw of the shoulder line minus the yaw of the hip
// line, wrapped to (-180, 180]. For a right-handed batter positive means the shoulders
// have turned counter-clockwise (seen from above) ahead of the hips; the sign is mirrored
// for left-handers so positive always means coiled into the swing.
func Separation(ls, rs, lh, rh r3.Vec, side pose.Side) (float64, error) {
	sy, err := yaw(ls, rs)
	if err != nil {
		return 0, err
	}
	hy, err := yaw(lh, rh)
	if err != nil {
		return 0, err
	}
	d := wrap(sy - hy)
	if side == pose.Left {
		d = -d
		if d == -180 {
			d = 180
		}
	}
	return d, nil
}
