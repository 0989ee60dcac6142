// Package render paints director output onto decoded video frames.
package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/andresmejia3/crease/internal/director"
	"github.com/andresmejia3/crease/internal/pose"
	"golang.org/x/image/draw"
)

// Style holds the colours used for overlays.
type Style struct {
	Left, Right, Centre color.RGBA
	Trail               color.RGBA
	Ghost               color.RGBA
	Warning             color.RGBA
	Panel               color.RGBA
	Text                color.RGBA
	Green, Amber, Red   color.RGBA
}

// DefaultStyle mirrors a broadcast look: warm left side, cool right side, gold trail.
func DefaultStyle() Style {
	return Style{
		Left:    color.RGBA{255, 140, 0, 255},
		Right:   color.RGBA{0, 170, 255, 255},
		Centre:  color.RGBA{230, 230, 230, 255},
		Trail:   color.RGBA{255, 215, 0, 255},
		Ghost:   color.RGBA{255, 255, 255, 255},
		Warning: color.RGBA{230, 40, 40, 255},
		Panel:   color.RGBA{0, 0, 0, 255},
		Text:    color.RGBA{255, 255, 255, 255},
		Green:   color.RGBA{40, 180, 80, 255},
		Amber:   color.RGBA{240, 170, 20, 255},
		Red:     color.RGBA{220, 50, 50, 255},
	}
}

// Renderer draws directives on frames of a fixed size. It reuses an internal buffer
// for the zoomed output, so a returned image is only valid until the next call.
type Renderer struct {
	width, height int
	style         Style
	out           *image.RGBA
}

// New creates a renderer for frames of the given size.
func New(width, height int, style Style) *Renderer {
	return &Renderer{
		width:  width,
		height: height,
		style:  style,
		out:    image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

// Render paints d onto frame and returns the finished image together with the number of
// times it should be written to the output stream. frame is modified in place.
func (r *Renderer) Render(frame *image.RGBA, d *director.Directive) (*image.RGBA, int) {
	if d.Ghost != nil {
		r.ghost(frame, d.Ghost)
	}
	r.skeleton(frame, &d.Skeleton, d.LowConfidence)
	r.trail(frame, d.Trail)

	out := r.zoom(frame, d.Zoom)

	r.badges(out, d.Badges)
	r.velocityBar(out, d.Velocity, d.VelocityValid)
	r.lowerThird(out, d)
	if d.LowConfidence {
		r.warning(out)
	}
	if d.SlowMotion {
		label := fmt.Sprintf("SLOW x%d", d.Repeat)
		text(out, r.width-textWidth(label)-12, 24, label, r.style.Amber)
	}

	repeat := d.Repeat
	if repeat < 1 {
		repeat = 1
	}
	return out, repeat
}

func (r *Renderer) px(x, y float64) image.Point {
	return image.Point{X: int(x * float64(r.width)), Y: int(y * float64(r.height))}
}

func (r *Renderer) thickness() int {
	t := r.height / 240
	if t < 1 {
		t = 1
	}
	return t
}

func (r *Renderer) sideColor(j pose.Joint) color.RGBA {
	switch {
	case pose.IsLeft(j):
		return r.style.Left
	case pose.IsRight(j):
		return r.style.Right
	}
	return r.style.Centre
}

func (r *Renderer) skeleton(img *image.RGBA, s *pose.Skeleton, lowConfidence bool) {
	alpha := 1.0
	if lowConfidence {
		alpha = 0.45
	}
	th := r.thickness()
	for _, l := range pose.Limbs {
		if !s.Valid[l.A] || !s.Valid[l.B] {
			continue
		}
		a, b := s.Image[l.A], s.Image[l.B]
		c := r.sideColor(l.B)
		if pose.IsLeft(l.A) != pose.IsLeft(l.B) {
			c = r.style.Centre
		}
		line(img, r.px(a.X, a.Y), r.px(b.X, b.Y), th*2, c, alpha)
	}
	for j := 0; j < pose.JointCount; j++ {
		if !s.Valid[j] {
			continue
		}
		p := r.px(s.Image[j].X, s.Image[j].Y)
		disk(img, p.X, p.Y, th*2+1, r.sideColor(pose.Joint(j)), alpha)
	}
}

func (r *Renderer) ghost(img *image.RGBA, g *director.GhostPose) {
	th := r.thickness()
	for _, l := range pose.Limbs {
		if !g.Valid[l.A] || !g.Valid[l.B] {
			continue
		}
		a, b := g.Points[l.A], g.Points[l.B]
		line(img, r.px(a.X, a.Y), r.px(b.X, b.Y), th*2, r.style.Ghost, 0.35)
	}
}

// trail fades from transparent (oldest) to opaque (newest).
func (r *Renderer) trail(img *image.RGBA, pts []director.Point) {
	th := r.thickness()
	n := len(pts)
	for i := 1; i < n; i++ {
		alpha := float64(i+1) / float64(n)
		line(img, r.px(pts[i-1].X, pts[i-1].Y), r.px(pts[i].X, pts[i].Y), th*3, r.style.Trail, alpha)
	}
	if n > 0 {
		p := r.px(pts[n-1].X, pts[n-1].Y)
		disk(img, p.X, p.Y, th*3, r.style.Trail, 1)
	}
}

// zoom scales the crop window back up to full size. The full frame is returned as is.
func (r *Renderer) zoom(frame *image.RGBA, z director.Rect) *image.RGBA {
	src := image.Rect(
		int(z.X0*float64(r.width)), int(z.Y0*float64(r.height)),
		int(z.X1*float64(r.width)), int(z.Y1*float64(r.height)),
	).Intersect(frame.Rect)
	if src.Empty() || src == frame.Rect {
		return frame
	}
	draw.ApproxBiLinear.Scale(r.out, r.out.Rect, frame, src, draw.Src, nil)
	return r.out
}

func (r *Renderer) bandColor(c director.Color) color.RGBA {
	switch c {
	case director.Green:
		return r.style.Green
	case director.Amber:
		return r.style.Amber
	case director.Red:
		return r.style.Red
	}
	return r.style.Panel
}

func (r *Renderer) badges(img *image.RGBA, badges []director.Badge) {
	const (
		h   = 20
		gap = 6
		pad = 6
	)
	y := 12
	for _, b := range badges {
		label := b.Label + " --"
		if b.Present {
			label = fmt.Sprintf("%s %.0f", b.Label, b.Value)
		}
		alpha := 0.8
		if b.Stale {
			label += " (last)"
			alpha = 0.4
		}
		w := textWidth(label) + 2*pad
		fill(img, image.Rect(12, y, 12+w, y+h), r.bandColor(b.Color), alpha)
		text(img, 12+pad, y+h-6, label, r.style.Text)
		y += h + gap
	}
}

func (r *Renderer) velocityBar(img *image.RGBA, v float64, valid bool) {
	barH := r.height / 3
	x0, y0 := r.width-34, r.height/2-barH/2
	fill(img, image.Rect(x0, y0, x0+18, y0+barH), r.style.Panel, 0.5)
	if !valid {
		return
	}
	filled := int(v * float64(barH))
	fill(img, image.Rect(x0, y0+barH-filled, x0+18, y0+barH), r.style.Trail, 0.9)
}

func (r *Renderer) lowerThird(img *image.RGBA, d *director.Directive) {
	h := 30
	fill(img, image.Rect(0, r.height-h, r.width, r.height), r.style.Panel, 0.6)
	label := fmt.Sprintf("Frame %d  |  %s", d.Index, d.Phase)
	if d.Shot != "" {
		label += "  |  " + string(d.Shot)
	}
	text(img, 12, r.height-10, label, r.style.Text)
}

func (r *Renderer) warning(img *image.RGBA) {
	const label = "LOW CONFIDENCE"
	x := r.width/2 - textWidth(label)/2
	fill(img, image.Rect(x-8, 8, x+textWidth(label)+8, 30), r.style.Warning, 0.7)
	text(img, x, 24, label, r.style.Text)
	ring(img, r.width-20, r.height-15, 7, 2, r.style.Warning)
}
