package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/config"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/records"
	"github.com/andresmejia3/crease/internal/render"
)

func TestFmtTime(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00.000"},
		{65.25, "01:05.250"},
		{3661.5, "61:01.500"},
	}

	for _, tt := range tests {
		if got := fmtTime(tt.seconds); got != tt.want {
			t.Errorf("fmtTime(%v) = %v, want %v", tt.seconds, got, tt.want)
		}
	}
}

func TestApplyAnalyzeFlags(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "net_session.mp4")
	if err := os.WriteFile(video, []byte("not really a video"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		opts    AnalyzeOptions
		wantErr bool
	}{
		{name: "Valid options", opts: AnalyzeOptions{InputPath: video}},
		{name: "Input file does not exist", opts: AnalyzeOptions{InputPath: filepath.Join(dir, "missing.mp4")}, wantErr: true},
		{name: "Input is directory", opts: AnalyzeOptions{InputPath: dir}, wantErr: true},
		{name: "Negative fps", opts: AnalyzeOptions{InputPath: video, FPS: -1}, wantErr: true},
		{name: "Negative engines", opts: AnalyzeOptions{InputPath: video, Engines: -2}, wantErr: true},
		{name: "Missing ghost", opts: AnalyzeOptions{InputPath: video, GhostPath: filepath.Join(dir, "ghost.json")}, wantErr: true},
		{name: "Unknown side", opts: AnalyzeOptions{InputPath: video, Side: "sideways"}, wantErr: true},
		{name: "Fps above limit", opts: AnalyzeOptions{InputPath: video, FPS: 1000}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			if err := applyAnalyzeFlags(&cfg, &tt.opts); (err != nil) != tt.wantErr {
				t.Errorf("applyAnalyzeFlags() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestApplyAnalyzeFlagsOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "net_session.mp4")
	if err := os.WriteFile(video, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	engines := cfg.Sampling.Engines
	opts := AnalyzeOptions{
		InputPath: video,
		OutputDir: filepath.Join(dir, "out"),
		FPS:       30,
		Workers:   3,
		Side:      "LEFT",
		NoRender:  true,
		NoCache:   true,
	}
	if err := applyAnalyzeFlags(&cfg, &opts); err != nil {
		t.Fatal(err)
	}

	if cfg.Paths.OutputDir != opts.OutputDir {
		t.Errorf("output dir = %q, want %q", cfg.Paths.OutputDir, opts.OutputDir)
	}
	if cfg.Sampling.FPS != 30 || cfg.Sampling.Workers != 3 {
		t.Errorf("sampling = %+v, want fps 30 and 3 workers", cfg.Sampling)
	}
	if cfg.Sampling.Engines != engines {
		t.Errorf("engines = %d, zero flag should keep %d", cfg.Sampling.Engines, engines)
	}
	if cfg.Biomech.Side != "left" {
		t.Errorf("side = %q, want left", cfg.Biomech.Side)
	}
	if cfg.Render.Enabled || cfg.Pose.Cache {
		t.Errorf("render=%v cache=%v, want both disabled", cfg.Render.Enabled, cfg.Pose.Cache)
	}
}

func TestOutputsFor(t *testing.T) {
	got := outputsFor("/out", "/videos/nets/cover drive.MOV")
	want := outputPaths{
		Features:  "/out/cover drive_features.csv",
		Landmarks: "/out/cover drive_landmarks.json",
		Video:     "/out/cover drive_visualized.mp4",
	}
	if got != want {
		t.Errorf("outputsFor() = %+v, want %+v", got, want)
	}
}

func TestSegmentRows(t *testing.T) {
	segs := []phase.Segment{
		{ID: 1, Start: 10, Impact: 15, End: 24, Shot: phase.Drive},
		{ID: 2, Start: 40, Impact: -1, End: 43, Shot: phase.Unclassified},
	}
	rows := segmentRows(segs, 4)

	want := [][]string{
		{"1", "10", "15 (00:03.500)", "24", "3.75s", "DRIVE"},
		{"2", "40", "-", "43", "1.00s", "UNCLASSIFIED"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i := range want {
		if strings.Join(rows[i], "|") != strings.Join(want[i], "|") {
			t.Errorf("row %d = %v, want %v", i, rows[i], want[i])
		}
	}
}

func TestPostgresFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	if got := postgresFromEnv(); got != "" {
		t.Errorf("without host got %q, want empty", got)
	}

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "crease")
	t.Setenv("POSTGRES_PASSWORD", "pw")
	t.Setenv("POSTGRES_DB", "runs")
	t.Setenv("POSTGRES_PORT", "")
	if got, want := postgresFromEnv(), "postgres://crease:pw@db:5432/runs"; got != want {
		t.Errorf("postgresFromEnv() = %q, want %q", got, want)
	}
}

func TestRenderTable(t *testing.T) {
	if got := renderTable(nil, nil, nil); got != "" {
		t.Errorf("empty headers rendered %q", got)
	}

	out := renderTable([]string{"Metric", "Value"}, [][]string{{"elbow_angle_deg", "121.5"}, {"knee_angle_deg"}}, []columnAlignment{alignLeft, alignRight})
	for _, cell := range []string{"elbow_angle_deg", "121.5", "knee_angle_deg"} {
		if !strings.Contains(out, cell) {
			t.Errorf("table is missing %q:\n%s", cell, out)
		}
	}
	if lines := strings.Count(out, "\n") + 1; lines != 6 {
		t.Errorf("table has %d lines, want 6:\n%s", lines, out)
	}
}

func TestParseMetrics(t *testing.T) {
	ids, err := parseMetrics([]string{"x_factor_deg", " bat_tilt_deg"})
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 2 || ids[0] != biomech.XFactor || ids[1] != biomech.BatTilt {
		t.Errorf("parseMetrics() = %v", ids)
	}
	if _, err := parseMetrics([]string{"bogus"}); err == nil {
		t.Error("expected an error for an unknown metric")
	}
}

// sessionArchive has frames 1..6 with one segment over 3..5 that impacts at 4.
func sessionArchive(t *testing.T) *records.Archive {
	t.Helper()
	phases := []phase.Phase{phase.Setup, phase.Setup, phase.Load, phase.Impact, phase.FollowThrough, phase.Idle}
	rows := make([]records.Row, len(phases))
	for i, p := range phases {
		idx := i + 1
		seg := 0
		if p.InSegment() {
			seg = 1
		}
		rows[i] = records.Row{
			Metrics: biomech.MetricFrame{Index: idx},
			Tag:     phase.Tag{Index: idx, Phase: p, Segment: seg},
		}
	}
	a, err := records.NewArchive(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestPickFrame(t *testing.T) {
	a := sessionArchive(t)

	tests := []struct {
		frame   int
		want    int
		wantErr bool
	}{
		{frame: 0, want: 4},
		{frame: 6, want: 6},
		{frame: 1, want: 1},
		{frame: 9, wantErr: true},
	}
	for _, tt := range tests {
		got, err := pickFrame(a, tt.frame)
		if (err != nil) != tt.wantErr {
			t.Errorf("pickFrame(%d) error = %v, wantErr %v", tt.frame, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("pickFrame(%d) = %d, want %d", tt.frame, got, tt.want)
		}
	}

	empty, _ := records.NewArchive(nil, nil)
	if _, err := pickFrame(empty, 0); err == nil {
		t.Error("expected an error for an empty archive")
	}
}

func TestGhostOffset(t *testing.T) {
	segs := sessionArchive(t).Segments()
	if got := ghostOffset(segs, 5); got != 2 {
		t.Errorf("offset inside segment = %d, want 2", got)
	}
	if got := ghostOffset(segs, 1); got != 0 {
		t.Errorf("offset outside segment = %d, want 0", got)
	}
}

func TestStillFrame(t *testing.T) {
	var s biomech.Sample
	s.Index = 1
	s.Values[biomech.ElbowAngle] = 120
	s.Valid[biomech.ElbowAngle] = true
	s.Values[biomech.KneeAngle] = 99 // invalid values are not published

	m := stillFrame(s)
	if got := m.Get(biomech.ElbowAngle); got != (biomech.Metric{Value: 120, Raw: 120, Valid: true}) {
		t.Errorf("elbow = %+v", got)
	}
	if got := m.Get(biomech.KneeAngle); got.Valid || got.Value != 0 {
		t.Errorf("knee = %+v, want invalid zero", got)
	}

	rows := metricRows(m)
	if len(rows) != biomech.MetricCount {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][1] != "120.0" || rows[1][1] != "-" {
		t.Errorf("rows = %v", rows[:2])
	}
}

func TestRemoveOutputs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a_features.csv", "a_landmarks.json", "a_visualized.mp4", "a_frame12.html", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if n := removeOutputs(dir); n != 4 {
		t.Errorf("removed %d files, want 4", n)
	}
	if _, err := os.Stat(filepath.Join(dir, "notes.txt")); err != nil {
		t.Errorf("unrelated file was removed: %v", err)
	}
}

func TestRenderedLineReportsMissingFrames(t *testing.T) {
	full := renderedLine("/out/a_visualized.mp4", &render.VideoSink{Frames: 10, Written: 14})
	if strings.Contains(full, "missing") {
		t.Errorf("complete video reported missing frames: %q", full)
	}
	if !strings.Contains(full, "Wrote 14 frames (10 source) to /out/a_visualized.mp4") {
		t.Errorf("unexpected line %q", full)
	}

	short := renderedLine("/out/a_visualized.mp4", &render.VideoSink{Frames: 8, Written: 8, Missing: 2})
	if !strings.Contains(short, "2 analysed frames missing") {
		t.Errorf("shortened video not called out: %q", short)
	}
}

func TestCacheKeyTracksEstimatorSettings(t *testing.T) {
	cfg := config.Default()
	base := cacheKey(&cfg, "vid")

	stricter := config.Default()
	stricter.Pose.MinDetection = cfg.Pose.MinDetection + 0.2
	if got := cacheKey(&stricter, "vid"); got.Model == base.Model {
		t.Errorf("detection threshold change kept model key %q", got.Model)
	}

	heavier := config.Default()
	heavier.Pose.ModelComplexity = 2
	if got := cacheKey(&heavier, "vid"); got.Model == base.Model {
		t.Errorf("model complexity change kept model key %q", got.Model)
	}

	faster := config.Default()
	faster.Sampling.FPS = cfg.Sampling.FPS * 2
	if got := cacheKey(&faster, "vid"); got.SampleFPS == base.SampleFPS || got.Model != base.Model {
		t.Errorf("fps change gave %+v from %+v", got, base)
	}
}
