package render

import (
	"image"
	"image/color"
	"testing"

	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/pose/posetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func directive(t *testing.T) *director.Directive {
	t.Helper()
	skel, err := normalize.Normalize(posetest.Stance().Frame(3, 0), normalize.DefaultConfig())
	require.NoError(t, err)
	return &director.Directive{
		Index:    3,
		Skeleton: skel,
		Zoom:     director.FullFrame(),
		Repeat:   1,
	}
}

func at(img *image.RGBA, x, y int) color.RGBA {
	return img.RGBAAt(x, y)
}

func TestRenderDrawsJointsInPlace(t *testing.T) {
	t.Parallel()

	const w, h = 320, 240
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	r := New(w, h, DefaultStyle())

	d := directive(t)
	out, repeat := r.Render(frame, d)
	assert.Same(t, frame, out, "no zoom renders in place")
	assert.Equal(t, 1, repeat)

	rs := d.Skeleton.Image[pose.RightShoulder]
	got := at(out, int(rs.X*w), int(rs.Y*h))
	assert.Equal(t, DefaultStyle().Right, got)

	ls := d.Skeleton.Image[pose.LeftShoulder]
	assert.Equal(t, DefaultStyle().Left, at(out, int(ls.X*w), int(ls.Y*h)))
}

func TestRenderSkipsInvalidJoints(t *testing.T) {
	t.Parallel()

	const w, h = 320, 240
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	r := New(w, h, DefaultStyle())

	d := directive(t)
	d.Skeleton.Valid[pose.LeftAnkle] = false
	d.Skeleton.Valid[pose.LeftHeel] = false
	d.Skeleton.Valid[pose.LeftFootIndex] = false
	d.Skeleton.Valid[pose.LeftKnee] = false
	out, _ := r.Render(frame, d)

	lk := d.Skeleton.Image[pose.LeftKnee]
	assert.Equal(t, color.RGBA{}, at(out, int(lk.X*w), int(lk.Y*h)))
}

func TestRenderZoomUsesSeparateBuffer(t *testing.T) {
	t.Parallel()

	const w, h = 200, 200
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	// paint the top-left quadrant so the crop fills the output
	fill(frame, image.Rect(0, 0, 100, 100), color.RGBA{10, 200, 10, 255}, 1)
	r := New(w, h, DefaultStyle())

	d := &director.Directive{Index: 1, Zoom: director.Rect{X0: 0, Y0: 0, X1: 0.5, Y1: 0.5}, Repeat: 1}
	out, _ := r.Render(frame, d)
	assert.NotSame(t, frame, out)
	assert.Equal(t, frame.Rect, out.Rect)

	// centre of the output comes from the painted quadrant
	c := at(out, 100, 90)
	assert.Greater(t, c.G, uint8(150))
}

func TestRenderSlowMotionRepeats(t *testing.T) {
	t.Parallel()

	const w, h = 160, 120
	r := New(w, h, DefaultStyle())
	d := directive(t)
	d.SlowMotion = true
	d.Repeat = 4

	_, repeat := r.Render(image.NewRGBA(image.Rect(0, 0, w, h)), d)
	assert.Equal(t, 4, repeat)
}

func TestRenderTrailAndHUD(t *testing.T) {
	t.Parallel()

	const w, h = 320, 240
	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	r := New(w, h, DefaultStyle())

	d := &director.Directive{
		Index:         9,
		Zoom:          director.FullFrame(),
		Trail:         []director.Point{{X: 0.2, Y: 0.5}, {X: 0.3, Y: 0.5}},
		Velocity:      1,
		VelocityValid: true,
		LowConfidence: true,
		Badges: []director.Badge{
			{Label: "Elbow", Value: 120, Color: director.Green, Present: true},
		},
	}
	out, _ := r.Render(frame, d)

	assert.Equal(t, DefaultStyle().Trail, at(out, int(0.3*w), int(0.5*h)), "newest trail point is opaque")

	// badge background at its top-left corner
	badge := at(out, 13, 13)
	assert.Greater(t, badge.G, badge.R)

	// full velocity bar reaches the top of its track
	top := h/2 - (h/3)/2
	assert.NotEqual(t, color.RGBA{}, at(out, w-30, top+1))
}

func TestBlendClipsOutOfBounds(t *testing.T) {
	t.Parallel()

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	blend(img, -1, 2, color.RGBA{255, 0, 0, 255}, 1)
	blend(img, 4, 4, color.RGBA{255, 0, 0, 255}, 1)
	line(img, image.Point{-10, -10}, image.Point{10, 10}, 1, color.RGBA{255, 0, 0, 255}, 0.5)
	assert.Equal(t, uint8(127), img.RGBAAt(1, 1).R)
}
