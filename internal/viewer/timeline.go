package viewer

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/records"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// ErrNoSamples is returned when none of the requested metrics has a valid frame.
var ErrNoSamples = errors.New("no valid samples for the requested metrics")

var impactColor = color.RGBA{R: 0xd9, G: 0x77, B: 0x06, A: 0xff}

// TimelineOptions controls the metric timeline.
type TimelineOptions struct {
	Title   string
	Metrics []biomech.MetricID
	// Raw plots unsmoothed values instead of smoothed ones.
	Raw bool
}

// Timeline plots the chosen metrics against frame index with a dashed vertical line at
// every segment's impact frame. Invalid frames break the line.
func Timeline(a *records.Archive, o TimelineOptions) (*plot.Plot, error) {
	first, last, ok := a.Bounds()
	if !ok {
		return nil, ErrNoSamples
	}
	metrics := o.Metrics
	if len(metrics) == 0 {
		metrics = []biomech.MetricID{biomech.ElbowAngle, biomech.XFactor, biomech.BatTilt}
	}

	p := plot.New()
	p.Title.Text = o.Title
	p.X.Label.Text = "Frame"
	p.Y.Label.Text = "Value"
	p.Add(plotter.NewGrid())
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	lo, hi := math.Inf(1), math.Inf(-1)
	for i, id := range metrics {
		idx, vals := a.Series(id)
		runs := validRuns(idx, vals, o.Raw)
		if len(runs) == 0 {
			continue
		}
		for n, pts := range runs {
			line, err := plotter.NewLine(pts)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", id, err)
			}
			line.Color = plotutil.Color(i)
			line.Width = vg.Points(1.5)
			p.Add(line)
			if n == 0 {
				p.Legend.Add(id.String(), line)
			}
			for _, pt := range pts {
				lo, hi = math.Min(lo, pt.Y), math.Max(hi, pt.Y)
			}
		}
	}
	if math.IsInf(lo, 1) {
		return nil, ErrNoSamples
	}
	if lo == hi {
		lo, hi = lo-1, hi+1
	}

	for n, seg := range a.Segments() {
		if seg.Impact < 0 {
			continue
		}
		x := float64(seg.Impact)
		marker, err := plotter.NewLine(plotter.XYs{{X: x, Y: lo}, {X: x, Y: hi}})
		if err != nil {
			return nil, err
		}
		marker.Color = impactColor
		marker.Width = vg.Points(1)
		marker.Dashes = []vg.Length{vg.Points(4), vg.Points(3)}
		p.Add(marker)
		if n == 0 {
			p.Legend.Add("impact", marker)
		}
	}

	p.X.Min, p.X.Max = float64(first), float64(last)
	return p, nil
}

// SaveTimeline renders the timeline to path; the image format follows the extension.
func SaveTimeline(path string, a *records.Archive, o TimelineOptions) error {
	p, err := Timeline(a, o)
	if err != nil {
		return err
	}
	if err := p.Save(14*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save timeline %s: %w", path, err)
	}
	return nil
}

// validRuns splits a metric series into contiguous runs of valid frames.
func validRuns(idx []int, vals []biomech.Metric, raw bool) []plotter.XYs {
	var runs []plotter.XYs
	var cur plotter.XYs
	for i, m := range vals {
		if !m.Valid {
			if len(cur) > 0 {
				runs = append(runs, cur)
				cur = nil
			}
			continue
		}
		y := m.Value
		if raw {
			y = m.Raw
		}
		cur = append(cur, plotter.XY{X: float64(idx[i]), Y: y})
	}
	if len(cur) > 0 {
		runs = append(runs, cur)
	}
	return runs
}
