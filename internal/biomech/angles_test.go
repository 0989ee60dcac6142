package biomech

import (
	"errors"
	"testing"

	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/pose/posetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestJointAngleKnownTriangles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		a, b, c r3.Vec
		want    float64
	}{
		{"right angle", r3.Vec{X: 1}, r3.Vec{}, r3.Vec{Y: 1}, 90},
		{"straight", r3.Vec{X: -2, Z: 1}, r3.Vec{Z: 1}, r3.Vec{X: 3, Z: 1}, 180},
		{"folded", r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{}, r3.Vec{X: 2, Y: 2, Z: 2}, 0},
		{"right angle in 3d", r3.Vec{X: 1, Y: 1}, r3.Vec{Y: 1}, r3.Vec{Y: 1, Z: -4}, 90},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := JointAngle(tt.a, tt.b, tt.c)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)

			// relabelling the bone order gives the same unsigned angle
			swapped, err := JointAngle(tt.c, tt.b, tt.a)
			require.NoError(t, err)
			assert.InDelta(t, got, swapped, 1e-9)
		})
	}
}

func TestJointAngleZeroLengthBone(t *testing.T) {
	t.Parallel()

	_, err := JointAngle(r3.Vec{X: 1}, r3.Vec{X: 1}, r3.Vec{Y: 1})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestLeanAndTilt(t *testing.T) {
	t.Parallel()

	lean, err := Lean(r3.Vec{}, r3.Vec{X: 1, Y: 1})
	require.NoError(t, err)
	assert.InDelta(t, 45, lean, 1e-9)

	tilt, err := Tilt(r3.Vec{}, r3.Vec{X: 1, Y: -1})
	require.NoError(t, err)
	assert.InDelta(t, -45, tilt, 1e-9)

	_, err = Tilt(r3.Vec{Y: 2}, r3.Vec{Y: 2})
	assert.ErrorIs(t, err, ErrDegenerate)
}

func TestSeparationSignAndWrap(t *testing.T) {
	t.Parallel()

	lh, rh := r3.Vec{X: -1}, r3.Vec{X: 1}
	// shoulders turned 30 degrees
	ls, rs := r3.Vec{X: -0.866, Z: -0.5}, r3.Vec{X: 0.866, Z: 0.5}

	right, err := Separation(ls, rs, lh, rh, pose.Right)
	require.NoError(t, err)
	assert.InDelta(t, 30, right, 1e-3)

	left, err := Separation(ls, rs, lh, rh, pose.Left)
	require.NoError(t, err)
	assert.InDelta(t, -30, left, 1e-3)

	assert.InDelta(t, -170, wrap(190), 1e-9)
	assert.InDelta(t, 180, wrap(-180), 1e-9)
	assert.InDelta(t, 0, wrap(720), 1e-9)
}

func measureFrame(t *testing.T, raw pose.RawFrame, cfg Config) (Sample, []error) {
	t.Helper()
	skel, err := normalize.Normalize(raw, normalize.DefaultConfig())
	require.NoError(t, err)
	return Measure(&skel, cfg)
}

func TestMeasureStance(t *testing.T) {
	t.Parallel()

	s, errs := measureFrame(t, posetest.Stance().Frame(2, 0), DefaultConfig())
	require.Empty(t, errs)

	assert.Equal(t, 2, s.Index)
	assert.InDelta(t, 90, s.Values[ElbowAngle], 1e-6)
	assert.InDelta(t, 180, s.Values[KneeAngle], 1e-6)
	assert.InDelta(t, 0, s.Values[TrunkLean], 1e-6)
	assert.InDelta(t, 0, s.Values[XFactor], 1e-6)
	assert.InDelta(t, -90, s.Values[BatTilt], 1e-6)
	assert.True(t, s.WristValid)
	assert.False(t, s.Valid[WristSpeed], "velocities need neighbouring frames")
}

func TestMeasureCoilAndLean(t *testing.T) {
	t.Parallel()

	b := posetest.Stance()
	b.ShoulderYawDeg = 30
	b.LeanDeg = 20
	s, errs := measureFrame(t, b.Frame(1, 0), DefaultConfig())
	require.Empty(t, errs)
	assert.InDelta(t, 30, s.Values[XFactor], 1e-6)
	assert.InDelta(t, 20, s.Values[TrunkLean], 1e-6)

	cfg := DefaultConfig()
	cfg.Side = pose.Left
	s, _ = measureFrame(t, b.Frame(1, 0), cfg)
	assert.InDelta(t, -30, s.Values[XFactor], 1e-6)
}

func TestMeasureInvalidJointsNeverSubstituted(t *testing.T) {
	t.Parallel()

	raw := posetest.Hide(posetest.Stance().Frame(1, 0), pose.RightIndex, pose.RightKnee)
	s, errs := measureFrame(t, raw, DefaultConfig())
	require.Empty(t, errs)

	assert.False(t, s.Valid[BatTilt])
	assert.Zero(t, s.Values[BatTilt])
	assert.False(t, s.Valid[KneeAngle])
	assert.Zero(t, s.Values[KneeAngle])
	assert.True(t, s.Valid[ElbowAngle])
}

func TestMeasureDegenerateBone(t *testing.T) {
	t.Parallel()

	raw := posetest.Stance().Frame(4, 0)
	var shoulder pose.RawLandmark
	for _, l := range raw.Landmarks {
		if l.Name == pose.RightShoulder.String() {
			shoulder = l
		}
	}
	for i := range raw.Landmarks {
		if raw.Landmarks[i].Name == pose.RightElbow.String() {
			raw.Landmarks[i].X, raw.Landmarks[i].Y, raw.Landmarks[i].Z = shoulder.X, shoulder.Y, shoulder.Z
		}
	}

	s, errs := measureFrame(t, raw, DefaultConfig())
	require.Len(t, errs, 1)

	var me *MetricError
	require.True(t, errors.As(errs[0], &me))
	assert.Equal(t, ElbowAngle, me.Metric)
	assert.Equal(t, 4, me.Index)
	assert.False(t, s.Valid[ElbowAngle])
	assert.True(t, s.Valid[TrunkLean], "other metrics unaffected")
}

func TestMeasureUnscaledSkeleton(t *testing.T) {
	t.Parallel()

	skel, err := normalize.Normalize(posetest.Empty(9, 0), normalize.DefaultConfig())
	require.Error(t, err)

	s, errs := Measure(&skel, DefaultConfig())
	assert.Empty(t, errs)
	assert.Equal(t, 9, s.Index)
	for id := 0; id < MetricCount; id++ {
		assert.False(t, s.Valid[id])
	}
	assert.False(t, s.WristValid)
}
