// Package biomech derives joint angles, trunk posture, bat tilt, X-factor and limb
// velocities from normalized skeletons, with per-segment temporal smoothing.
package biomech

import (
	"fmt"
	"time"
)

// MetricID identifies a published metric. The numeric order is the stable column order of
// every record sink.
type MetricID int

const (
	ElbowAngle MetricID = iota
	KneeAngle
	TrunkLean
	XFactor
	BatTilt
	WristSpeed
	ElbowAngularVelocity
)

// MetricCount is the number of published metrics.
const MetricCount = 7

// MetricNames lists metric names in column order.
var MetricNames = [MetricCount]string{
	"elbow_angle_deg",
	"knee_angle_deg",
	"trunk_lean_deg",
	"x_factor_deg",
	"bat_tilt_deg",
	"wrist_speed",
	"elbow_angular_velocity_dps",
}

func (m MetricID) String() string {
	if m < 0 || int(m) >= MetricCount {
		return fmt.Sprintf("metric(%d)", int(m))
	}
	return MetricNames[m]
}

// ParseMetric resolves a metric by its column name.
func ParseMetric(name string) (MetricID, bool) {
	for i, n := range MetricNames {
		if n == name {
			return MetricID(i), true
		}
	}
	return 0, false
}

// Metric is one published value. Value is smoothed over the current segment, Raw is the
// unsmoothed frame value. Both are zero when Valid is false.
type Metric struct {
	Value float64
	Raw   float64
	Valid bool
}

// MetricFrame is the engine output for one frame.
type MetricFrame struct {
	Index     int
	Timestamp time.Duration
	// Window identifies the smoothing window; it increments on every segment reset.
	Window int
	Values [MetricCount]Metric
}

// Get returns a single metric.
func (f *MetricFrame) Get(id MetricID) Metric {
	return f.Values[id]
}

// AnyValid reports whether at least one metric is usable.
func (f *MetricFrame) AnyValid() bool {
	for _, m := range f.Values {
		if m.Valid {
			return true
		}
	}
	return false
}

// MetricError reports a metric that could not be computed from otherwise valid joints,
// for example a zero-length bone. Only that metric is invalidated.
type MetricError struct {
	Index  int
	Metric MetricID
	Err    error
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("frame %d: %s: %v", e.Index, e.Metric, e.Err)
}

func (e *MetricError) Unwrap() error { return e.Err }
