package viewer

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/normalize"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/pose/posetest"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// archive builds n frames of rising elbow angle with an invalid gap at frame 4 and a
// single segment whose impact is frame 6.
func archive(t *testing.T, n int) *records.Archive {
	t.Helper()
	var rows []records.Row
	var skels []pose.Skeleton
	for i := 1; i <= n; i++ {
		var m biomech.MetricFrame
		m.Index = i
		m.Timestamp = time.Duration(i) * 66 * time.Millisecond
		if i != 4 {
			m.Values[biomech.ElbowAngle] = biomech.Metric{Value: 90 + float64(i), Raw: 91 + float64(i), Valid: true}
		}
		tag := phase.Tag{Index: i, Phase: phase.Setup}
		switch {
		case i == 5:
			tag = phase.Tag{Index: i, Phase: phase.Load, Segment: 1}
		case i == 6:
			tag = phase.Tag{Index: i, Phase: phase.Impact, Segment: 1, Shot: phase.Drive}
		case i > 6:
			tag = phase.Tag{Index: i, Phase: phase.FollowThrough, Segment: 1, Shot: phase.Drive}
		}
		rows = append(rows, records.Row{Metrics: m, Tag: tag})

		skel, err := normalize.Normalize(posetest.Stance().Frame(i, m.Timestamp), normalize.DefaultConfig())
		require.NoError(t, err)
		skels = append(skels, skel)
	}
	a, err := records.NewArchive(rows, skels)
	require.NoError(t, err)
	return a
}

func TestWritePage(t *testing.T) {
	a := archive(t, 8)
	e, ok := a.Lookup(6)
	require.True(t, ok)

	ghost := e.Skeleton
	var buf bytes.Buffer
	require.NoError(t, WritePage(&buf, e, PageOptions{Title: "clip.mp4", Ghost: &ghost}))

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "clip.mp4")
	assert.Contains(t, html, "line3D")
	assert.Contains(t, html, "ghost")
	assert.Contains(t, html, "elbow_angle_deg")
	assert.NotContains(t, html, "knee_angle_deg", "invalid metrics are omitted")
}

func TestWritePageNeedsSkeleton(t *testing.T) {
	a := archive(t, 3)
	e, _ := a.Lookup(2)
	e.HasSkeleton = false
	err := WritePage(&bytes.Buffer{}, e, PageOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2")
}

func TestLimbSegmentsSkipInvalidJoints(t *testing.T) {
	a := archive(t, 1)
	e, _ := a.Lookup(1)
	all := limbSegments(&e.Skeleton)

	e.Skeleton.Valid[pose.RightElbow] = false
	fewer := limbSegments(&e.Skeleton)
	assert.Len(t, fewer, len(all)-2, "both bones touching the elbow are dropped")

	for _, seg := range all {
		require.Len(t, seg.points, 2)
	}
	assert.Equal(t, leftColor, limbColor(pose.Limb{A: pose.LeftHip, B: pose.LeftKnee}))
	assert.Equal(t, rightColor, limbColor(pose.Limb{A: pose.RightHip, B: pose.RightKnee}))
	assert.Equal(t, centerColor, limbColor(pose.Limb{A: pose.LeftHip, B: pose.RightHip}))
}

func TestValidRunsBreakOnInvalidFrames(t *testing.T) {
	a := archive(t, 8)
	idx, vals := a.Series(biomech.ElbowAngle)
	runs := validRuns(idx, vals, false)
	require.Len(t, runs, 2)
	assert.Len(t, runs[0], 3)
	assert.Len(t, runs[1], 4)
	assert.Equal(t, 95.0, runs[1][0].Y)

	raw := validRuns(idx, vals, true)
	assert.Equal(t, 96.0, raw[1][0].Y)
}

func TestTimeline(t *testing.T) {
	a := archive(t, 8)
	p, err := Timeline(a, TimelineOptions{Title: "clip", Metrics: []biomech.MetricID{biomech.ElbowAngle}})
	require.NoError(t, err)
	assert.Equal(t, "clip", p.Title.Text)
	assert.Equal(t, 1.0, p.X.Min)
	assert.Equal(t, 8.0, p.X.Max)

	_, err = Timeline(a, TimelineOptions{Metrics: []biomech.MetricID{biomech.KneeAngle}})
	assert.ErrorIs(t, err, ErrNoSamples)

	empty, err := records.NewArchive(nil, nil)
	require.NoError(t, err)
	_, err = Timeline(empty, TimelineOptions{})
	assert.ErrorIs(t, err, ErrNoSamples)
}

func TestSaveTimelinePNG(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping image rendering in short mode")
	}
	a := archive(t, 8)
	path := filepath.Join(t.TempDir(), "timeline.png")
	require.NoError(t, SaveTimeline(path, a, TimelineOptions{Metrics: []biomech.MetricID{biomech.ElbowAngle}}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "\x89PNG"))
}
