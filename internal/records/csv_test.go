package records

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pipeline"
	"github.com/andresmejia3/crease/internal/pose"
	"github.com/andresmejia3/crease/internal/pose/posetest"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRows() []Row {
	var rows []Row
	for i := 1; i <= 4; i++ {
		var m biomech.MetricFrame
		m.Index = i
		m.Timestamp = time.Duration(i) * 33333333
		m.Window = i / 3
		m.Values[biomech.ElbowAngle] = biomech.Metric{Value: 120.125 + float64(i), Raw: 119.0000001, Valid: true}
		m.Values[biomech.XFactor] = biomech.Metric{Value: -12.5, Raw: -1e-9, Valid: true}
		m.Values[biomech.WristSpeed] = biomech.Metric{Value: 0.1 + 0.2, Raw: 3.14159, Valid: i > 1}
		if i == 1 {
			m.Values[biomech.WristSpeed] = biomech.Metric{}
		}
		tag := phase.Tag{Index: i, Phase: phase.Setup}
		if i >= 3 {
			tag = phase.Tag{Index: i, Phase: phase.Impact, Segment: 2, Shot: phase.Cut}
		}
		rows = append(rows, Row{Metrics: m, Tag: tag})
	}
	return rows
}

func TestRoundTripIsLossless(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	rows := sampleRows()
	for _, r := range rows {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, len(rows), w.Rows())

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(rows, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidMetricsAreEmpty(t *testing.T) {
	t.Parallel()

	fields := Encode(sampleRows()[0])
	require.Len(t, fields, len(Header()))

	col := fixedLeading + 3*int(biomech.WristSpeed)
	assert.Equal(t, []string{"", "", "0"}, fields[col:col+3])
	assert.Equal(t, "SETUP", fields[len(fields)-3])
	assert.Equal(t, "0", fields[len(fields)-2])
	assert.Equal(t, "", fields[len(fields)-1])
}

func TestHeaderIsStable(t *testing.T) {
	t.Parallel()

	h := Header()
	assert.Equal(t, []string{"frame", "timestamp_ns", "window", "elbow_angle_deg", "elbow_angle_deg_raw", "elbow_angle_deg_valid"}, h[:6])
	assert.Equal(t, []string{"phase", "segment", "shot"}, h[len(h)-3:])
	assert.Len(t, h, 3+3*biomech.MetricCount+3)
}

func TestEmptyRunStillWritesHeader(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Flush())
	assert.Equal(t, strings.Join(Header(), ",")+"\n", buf.String())

	rows, err := ReadAll(&buf)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadAllRejectsBadInput(t *testing.T) {
	t.Parallel()

	good := func() []string { return Encode(sampleRows()[1]) }
	header := strings.Join(Header(), ",")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", "empty records file"},
		{"renamed column", strings.Replace(header, "window", "segment_window", 1) + "\n", "unexpected column 2"},
		{"bad valid flag", header + "\n" + strings.Join(replaceField(good(), fixedLeading+2, "yes"), ",") + "\n", "elbow_angle_deg_valid"},
		{"bad phase", header + "\n" + strings.Join(replaceField(good(), len(Header())-3, "SWING"), ",") + "\n", "phase"},
		{"bad shot", header + "\n" + strings.Join(replaceField(good(), len(Header())-1, "SWEEP"), ",") + "\n", "shot"},
		{"bad value", header + "\n" + strings.Join(replaceField(good(), fixedLeading, "abc"), ",") + "\n", "elbow_angle"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadAll(strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func replaceField(fields []string, i int, v string) []string {
	fields[i] = v
	return fields
}

func TestWriterIsARecordSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	w := NewWriter(&buf)
	var sink pipeline.RecordSink = w

	row := sampleRows()[2]
	require.NoError(t, sink.WriteRecord(context.Background(), pipeline.Record{Metrics: row.Metrics, Tag: row.Tag}))
	require.NoError(t, w.Flush())

	got, err := ReadAll(&buf)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, row, got[0])
}

func TestFileCommitAndAbort(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "clip_metrics.csv")

	aborted, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, aborted.Write(sampleRows()[0]))
	aborted.Abort()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "aborted file must not appear")

	f, err := Create(path)
	require.NoError(t, err)
	for _, r := range sampleRows() {
		require.NoError(t, f.Write(r))
	}
	require.NoError(t, f.Commit())
	f.Abort()

	rows, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, rows, 4)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLandmarksRoundTrip(t *testing.T) {
	t.Parallel()

	frames := posetest.Swing()
	frames[3] = posetest.Empty(4, frames[3].Timestamp)
	path := filepath.Join(t.TempDir(), "clip_landmarks.json")

	require.NoError(t, SaveLandmarks(path, frames))
	got, err := LoadLandmarks(path)
	require.NoError(t, err)
	require.Len(t, got, len(frames))
	assert.Equal(t, frames[0], got[0])
	assert.Empty(t, got[3].Landmarks)
	assert.Equal(t, 4, got[3].Index)
}

func TestArchive(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	skel := pose.Skeleton{Index: 2, Scaled: true}
	stray := pose.Skeleton{Index: 99}

	a, err := NewArchive(rows, []pose.Skeleton{skel, stray})
	require.NoError(t, err)
	assert.Equal(t, 4, a.Len())

	first, last, ok := a.Bounds()
	require.True(t, ok)
	assert.Equal(t, 1, first)
	assert.Equal(t, 4, last)

	e, ok := a.Lookup(2)
	require.True(t, ok)
	assert.True(t, e.HasSkeleton)
	assert.True(t, e.Skeleton.Scaled)
	assert.Equal(t, rows[1], e.Row)

	e, ok = a.Lookup(3)
	require.True(t, ok)
	assert.False(t, e.HasSkeleton)

	_, ok = a.Lookup(0)
	assert.False(t, ok)
	_, ok = a.Lookup(5)
	assert.False(t, ok)

	// lookups hand out copies
	e.Row.Tag.Phase = phase.Idle
	again, _ := a.Lookup(3)
	assert.Equal(t, phase.Impact, again.Row.Tag.Phase)

	idx, vals := a.Series(biomech.WristSpeed)
	assert.Equal(t, []int{1, 2, 3, 4}, idx)
	assert.False(t, vals[0].Valid)
	assert.True(t, vals[1].Valid)

	assert.Equal(t, []phase.Segment{{ID: 2, Start: 3, Impact: 3, End: 4, Shot: phase.Cut}}, a.Segments())
}

func TestArchiveRejectsGaps(t *testing.T) {
	t.Parallel()

	rows := sampleRows()
	_, err := NewArchive([]Row{rows[0], rows[2]}, nil)
	require.Error(t, err)

	empty, err := NewArchive(nil, nil)
	require.NoError(t, err)
	_, _, ok := empty.Bounds()
	assert.False(t, ok)
	assert.Empty(t, empty.Segments())
}
