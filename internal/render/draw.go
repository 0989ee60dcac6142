package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// blend mixes c into the pixel at (x, y) with the given opacity. Out-of-bounds writes
// are ignored.
func blend(img *image.RGBA, x, y int, c color.RGBA, alpha float64) {
	if !(image.Point{x, y}.In(img.Rect)) {
		return
	}
	off := (y-img.Rect.Min.Y)*img.Stride + (x-img.Rect.Min.X)*4
	pix := img.Pix
	if alpha >= 1 {
		pix[off], pix[off+1], pix[off+2], pix[off+3] = c.R, c.G, c.B, 255
		return
	}
	inv := 1 - alpha
	pix[off] = uint8(float64(pix[off])*inv + float64(c.R)*alpha)
	pix[off+1] = uint8(float64(pix[off+1])*inv + float64(c.G)*alpha)
	pix[off+2] = uint8(float64(pix[off+2])*inv + float64(c.B)*alpha)
	pix[off+3] = 255
}

// disk fills a circle.
func disk(img *image.RGBA, cx, cy, radius int, c color.RGBA, alpha float64) {
	r2 := radius * radius
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= r2 {
				blend(img, cx+dx, cy+dy, c, alpha)
			}
		}
	}
}

// ring draws a circle outline of the given thickness.
func ring(img *image.RGBA, cx, cy, radius, thickness int, c color.RGBA) {
	outer := radius * radius
	inner := (radius - thickness) * (radius - thickness)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			d := dx*dx + dy*dy
			if d <= outer && d >= inner {
				blend(img, cx+dx, cy+dy, c, 1)
			}
		}
	}
}

// line draws a thick segment by stamping disks along it.
func line(img *image.RGBA, p0, p1 image.Point, thickness int, c color.RGBA, alpha float64) {
	dx, dy := float64(p1.X-p0.X), float64(p1.Y-p0.Y)
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		disk(img, p0.X, p0.Y, thickness/2, c, alpha)
		return
	}
	half := thickness / 2
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(float64(p0.X) + t*dx))
		y := int(math.Round(float64(p0.Y) + t*dy))
		if half == 0 {
			blend(img, x, y, c, alpha)
			continue
		}
		disk(img, x, y, half, c, alpha)
	}
}

// fill paints a rectangle, clipped to the image.
func fill(img *image.RGBA, r image.Rectangle, c color.RGBA, alpha float64) {
	r = r.Intersect(img.Rect)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			blend(img, x, y, c, alpha)
		}
	}
}

// text draws s with its baseline at (x, y).
func text(img *image.RGBA, x, y int, s string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// textWidth returns the advance of s in pixels.
func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Round()
}
