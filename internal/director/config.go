package director

import (
	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/pose"
)

// Color is a badge band.
type Color int

const (
	NoColor Color = iota
	Green
	Amber
	Red
)

func (c Color) String() string {
	switch c {
	case Green:
		return "green"
	case Amber:
		return "amber"
	case Red:
		return "red"
	}
	return "none"
}

// Range is an inclusive [Min, Max] interval.
type Range struct {
	Min, Max float64
}

// Contains reports whether v lies in the range.
func (r Range) Contains(v float64) bool { return v >= r.Min && v <= r.Max }

// BadgeSpec configures one metric badge. Values inside Green are green, otherwise inside
// Amber are amber, anything else is red.
type BadgeSpec struct {
	Metric biomech.MetricID
	Label  string
	Green  Range
	Amber  Range
}

// Band returns the colour for a value.
func (b BadgeSpec) Band(v float64) Color {
	switch {
	case b.Green.Contains(v):
		return Green
	case b.Amber.Contains(v):
		return Amber
	}
	return Red
}

// DefaultBadges are the badges drawn when none are configured.
func DefaultBadges() []BadgeSpec {
	return []BadgeSpec{
		{Metric: biomech.ElbowAngle, Label: "Elbow", Green: Range{0, 170}, Amber: Range{170, 175}},
		{Metric: biomech.KneeAngle, Label: "Knee", Green: Range{110, 170}, Amber: Range{90, 180}},
		{Metric: biomech.TrunkLean, Label: "Lean", Green: Range{0, 25}, Amber: Range{25, 40}},
		{Metric: biomech.XFactor, Label: "X-factor", Green: Range{15, 50}, Amber: Range{5, 65}},
		{Metric: biomech.BatTilt, Label: "Bat", Green: Range{-90, -30}, Amber: Range{-30, 10}},
	}
}

// Config holds the director parameters.
type Config struct {
	Side pose.Side
	// TrailLength bounds the number of wrist positions kept per segment.
	TrailLength int
	Badges      []BadgeSpec
	// VelocityBarMax is the wrist speed drawn as a full bar.
	VelocityBarMax float64
	// ZoomPadding pads the joint bounding box by this fraction of its size on each side.
	ZoomPadding float64
	// ZoomEasing is the fraction of the remaining distance covered per frame, in (0, 1].
	ZoomEasing float64
	// MinZoom is the smallest crop side, as a fraction of the frame.
	MinZoom float64
	// SlowMotionWidth is the number of frames in a burst centred on impact.
	SlowMotionWidth int
	// SlowMotionFactor is how many times a burst frame is shown.
	SlowMotionFactor int
}

// DefaultConfig returns the director defaults.
func DefaultConfig() Config {
	return Config{
		Side:             pose.Right,
		TrailLength:      15,
		Badges:           DefaultBadges(),
		VelocityBarMax:   8,
		ZoomPadding:      0.15,
		ZoomEasing:       0.2,
		MinZoom:          0.35,
		SlowMotionWidth:  9,
		SlowMotionFactor: 4,
	}
}
