// Package viewer renders read-only spot checks of an analysed run: an interactive 3-D
// pose page for a single frame and a metric timeline image for the whole clip.
package viewer

import (
	"fmt"
	"io"
	"math"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	leftColor   = "#3b82f6"
	rightColor  = "#ef4444"
	centerColor = "#e5e7eb"
	ghostColor  = "#9ca3af"
)

// PageOptions controls the 3-D frame page.
type PageOptions struct {
	Title string
	// Ghost is an optional reference skeleton drawn in grey behind the live one.
	Ghost *pose.Skeleton
	// AssetsHost overrides the echarts CDN, e.g. for offline use.
	AssetsHost string
}

// WritePage renders one archived frame as an HTML page: the body-space skeleton as a
// rotatable 3-D line chart and the frame's valid metrics as a bar chart.
func WritePage(w io.Writer, e records.Entry, o PageOptions) error {
	if !e.HasSkeleton || !e.Skeleton.Scaled {
		return fmt.Errorf("frame %d has no normalized skeleton", e.Row.Metrics.Index)
	}
	title := o.Title
	if title == "" {
		title = fmt.Sprintf("frame %d", e.Row.Metrics.Index)
	}
	subtitle := fmt.Sprintf("%s  t=%s  phase=%s  shot=%s",
		title, e.Row.Metrics.Timestamp, e.Row.Tag.Phase, e.Row.Tag.Shot)

	initOpts := opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "700px"}
	if o.AssetsHost != "" {
		initOpts.AssetsHost = o.AssetsHost
	}

	skel := newSkeletonChart(initOpts, subtitle, e.Skeleton, o.Ghost)
	bars := newMetricChart(initOpts, e.Row.Metrics)

	page := components.NewPage()
	page.PageTitle = title
	if o.AssetsHost != "" {
		page.SetAssetsHost(o.AssetsHost)
	}
	page.AddCharts(skel, bars)
	return page.Render(w)
}

func newSkeletonChart(initOpts opts.Initialization, subtitle string, live pose.Skeleton, ghost *pose.Skeleton) *charts.Line3D {
	c := charts.NewLine3D()

	bound := extent(&live)
	if ghost != nil && ghost.Scaled {
		bound = math.Max(bound, extent(ghost))
	}
	bound = math.Ceil(bound*10) / 10

	c.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: "Pose (torso lengths)", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxis3DOpts(opts.XAxis3D{Name: "x", Min: -bound, Max: bound}),
		charts.WithYAxis3DOpts(opts.YAxis3D{Name: "depth", Min: -bound, Max: bound}),
		charts.WithZAxis3DOpts(opts.ZAxis3D{Name: "up", Min: -bound, Max: bound}),
	)

	if ghost != nil && ghost.Scaled {
		for _, seg := range limbSegments(ghost) {
			c.AddSeries("ghost", seg.points,
				charts.WithLineStyleOpts(opts.LineStyle{Color: ghostColor, Width: 2}))
		}
	}
	for _, seg := range limbSegments(&live) {
		c.AddSeries("live", seg.points,
			charts.WithLineStyleOpts(opts.LineStyle{Color: seg.color, Width: 4}))
	}
	return c
}

type segment struct {
	color  string
	points []opts.Chart3DData
}

// limbSegments returns one two-point series per limb whose joints are both valid.
// Body space has y pointing down the image, so it is flipped onto the vertical axis.
func limbSegments(s *pose.Skeleton) []segment {
	out := make([]segment, 0, len(pose.Limbs))
	for _, l := range pose.Limbs {
		if !s.Valid[l.A] || !s.Valid[l.B] {
			continue
		}
		out = append(out, segment{
			color:  limbColor(l),
			points: []opts.Chart3DData{bodyPoint(s, l.A), bodyPoint(s, l.B)},
		})
	}
	return out
}

func bodyPoint(s *pose.Skeleton, j pose.Joint) opts.Chart3DData {
	b := s.Body[j]
	return opts.Chart3DData{Name: j.String(), Value: []interface{}{round(b.X), round(b.Z), round(-b.Y)}}
}

func limbColor(l pose.Limb) string {
	switch {
	case pose.IsLeft(l.A) && pose.IsLeft(l.B):
		return leftColor
	case pose.IsRight(l.A) && pose.IsRight(l.B):
		return rightColor
	default:
		return centerColor
	}
}

// extent is the largest absolute body coordinate over valid joints, at least 1.
func extent(s *pose.Skeleton) float64 {
	m := 1.0
	for j := 0; j < pose.JointCount; j++ {
		if !s.Valid[j] {
			continue
		}
		b := s.Body[j]
		m = math.Max(m, math.Max(math.Abs(b.X), math.Max(math.Abs(b.Y), math.Abs(b.Z))))
	}
	return m
}

func newMetricChart(initOpts opts.Initialization, m biomech.MetricFrame) *charts.Bar {
	c := charts.NewBar()
	c.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts),
		charts.WithTitleOpts(opts.Title{Title: "Metrics", Subtitle: "smoothed values; invalid metrics omitted"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)

	var names []string
	var smoothed, raw []opts.BarData
	for id := biomech.MetricID(0); id < biomech.MetricCount; id++ {
		v := m.Get(id)
		if !v.Valid {
			continue
		}
		names = append(names, id.String())
		smoothed = append(smoothed, opts.BarData{Value: round(v.Value)})
		raw = append(raw, opts.BarData{Value: round(v.Raw)})
	}
	label := charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})
	c.SetXAxis(names).
		AddSeries("smoothed", smoothed, label).
		AddSeries("raw", raw)
	return c
}

func round(v float64) float64 {
	return math.Round(v*1000) / 1000
}
