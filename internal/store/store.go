// Package store persists analysis runs in PostgreSQL.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pipeline"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// batchSize is the number of metric frames buffered before a COPY.
const batchSize = 500

// Store manages the PostgreSQL connection.
type Store struct {
	conn *pgx.Conn
}

// New establishes a connection to the database and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*Store, error) {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := initSchema(ctx, conn); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &Store{conn: conn}, nil
}

// initSchema creates the tables if they don't exist (Auto-Migration).
func initSchema(ctx context.Context, conn *pgx.Conn) error {
	query := `
		CREATE TABLE IF NOT EXISTS analysis_runs (
			id UUID PRIMARY KEY,
			video_id TEXT NOT NULL,
			video_path TEXT NOT NULL,
			sample_fps DOUBLE PRECISION NOT NULL,
			side TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			finished_at TIMESTAMPTZ,
			frames INT NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS metric_frames (
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			frame INT NOT NULL,
			timestamp_ns BIGINT NOT NULL,
			smoothing_window INT NOT NULL,
			phase TEXT NOT NULL,
			segment INT NOT NULL,
			shot TEXT NOT NULL,
			metrics JSONB NOT NULL,
			PRIMARY KEY (run_id, frame)
		);
		CREATE TABLE IF NOT EXISTS segments (
			run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
			segment INT NOT NULL,
			start_frame INT NOT NULL,
			impact_frame INT NOT NULL,
			end_frame INT NOT NULL,
			shot TEXT NOT NULL,
			PRIMARY KEY (run_id, segment)
		);
		CREATE INDEX IF NOT EXISTS analysis_runs_video_id_idx ON analysis_runs (video_id);
	`
	_, err := conn.Exec(ctx, query)
	return err
}

// Close terminates the database connection.
func (s *Store) Close(ctx context.Context) {
	s.conn.Close(ctx)
}

// RunInfo describes a new run.
type RunInfo struct {
	ID        uuid.UUID
	VideoID   string
	VideoPath string
	SampleFPS float64
	Side      string
}

// Run is a stored run with its summary counts.
type Run struct {
	RunInfo
	StartedAt  time.Time
	FinishedAt *time.Time
	Frames     int
	Segments   int
}

// BeginRun registers a run. Earlier runs of the same video stay in place until Finish, so
// a failed re-analysis leaves the previous complete run untouched.
func (s *Store) BeginRun(ctx context.Context, info RunInfo) (*RunWriter, error) {
	if _, err := s.conn.Exec(ctx, `
		INSERT INTO analysis_runs (id, video_id, video_path, sample_fps, side)
		VALUES ($1, $2, $3, $4, $5)
	`, info.ID, info.VideoID, info.VideoPath, info.SampleFPS, info.Side); err != nil {
		return nil, err
	}
	return &RunWriter{store: s, id: info.ID, videoID: info.VideoID}, nil
}

// RunWriter streams one run's records and segments into the database. It implements
// pipeline.RecordSink and pipeline.SegmentSink. A writer ends with exactly one of Finish
// or Abort; Abort after Finish is a no-op.
type RunWriter struct {
	store   *Store
	id      uuid.UUID
	videoID string
	rows    [][]any
	frames  int
	done    bool
}

// WriteRecord buffers a metric frame and copies a batch when the buffer is full.
func (w *RunWriter) WriteRecord(ctx context.Context, r pipeline.Record) error {
	metrics, err := encodeMetrics(r.Metrics)
	if err != nil {
		return err
	}
	w.rows = append(w.rows, []any{
		w.id, r.Metrics.Index, int64(r.Metrics.Timestamp), r.Metrics.Window,
		r.Tag.Phase.String(), r.Tag.Segment, string(r.Tag.Shot), metrics,
	})
	if len(w.rows) >= batchSize {
		return w.flush(ctx)
	}
	return nil
}

func (w *RunWriter) flush(ctx context.Context) error {
	if len(w.rows) == 0 {
		return nil
	}
	n, err := w.store.conn.CopyFrom(ctx,
		pgx.Identifier{"metric_frames"},
		[]string{"run_id", "frame", "timestamp_ns", "smoothing_window", "phase", "segment", "shot", "metrics"},
		pgx.CopyFromRows(w.rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy metric frames: %w", err)
	}
	w.frames += int(n)
	w.rows = w.rows[:0]
	return nil
}

// WriteSegment saves a closed segment.
func (w *RunWriter) WriteSegment(ctx context.Context, seg phase.Segment) error {
	_, err := w.store.conn.Exec(ctx, `
		INSERT INTO segments (run_id, segment, start_frame, impact_frame, end_frame, shot)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, w.id, seg.ID, seg.Start, seg.Impact, seg.End, string(seg.Shot))
	return err
}

// Finish copies the remaining frames, marks the run complete and replaces earlier runs
// of the same video in one transaction.
func (w *RunWriter) Finish(ctx context.Context) error {
	if err := w.flush(ctx); err != nil {
		return err
	}
	tx, err := w.store.conn.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		"UPDATE analysis_runs SET finished_at = NOW(), frames = $1 WHERE id = $2", w.frames, w.id); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		"DELETE FROM analysis_runs WHERE video_id = $1 AND id <> $2", w.videoID, w.id); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	w.done = true
	return nil
}

// Abort removes the unfinished run with everything written for it so far.
func (w *RunWriter) Abort(ctx context.Context) error {
	if w.done {
		return nil
	}
	w.done = true
	w.rows = nil
	_, err := w.store.conn.Exec(ctx, "DELETE FROM analysis_runs WHERE id = $1", w.id)
	return err
}

// storedMetric is the JSONB shape of one valid metric.
type storedMetric struct {
	Value float64 `json:"value"`
	Raw   float64 `json:"raw"`
}

// encodeMetrics keeps only valid metrics, keyed by name.
func encodeMetrics(m biomech.MetricFrame) ([]byte, error) {
	out := make(map[string]storedMetric, biomech.MetricCount)
	for id, v := range m.Values {
		if v.Valid {
			out[biomech.MetricNames[id]] = storedMetric{Value: v.Value, Raw: v.Raw}
		}
	}
	return json.Marshal(out)
}

func decodeMetrics(data []byte, m *biomech.MetricFrame) error {
	var in map[string]storedMetric
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	for name, v := range in {
		id, ok := biomech.ParseMetric(name)
		if !ok {
			return fmt.Errorf("unknown metric %q", name)
		}
		m.Values[id] = biomech.Metric{Value: v.Value, Raw: v.Raw, Valid: true}
	}
	return nil
}

// ListRuns returns every run, newest first.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT r.id::text, r.video_id, r.video_path, r.sample_fps, r.side, r.started_at, r.finished_at, r.frames,
			(SELECT COUNT(*) FROM segments s WHERE s.run_id = r.id)
		FROM analysis_runs r
		ORDER BY r.started_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var id string
		if err := rows.Scan(&id, &r.VideoID, &r.VideoPath, &r.SampleFPS, &r.Side, &r.StartedAt, &r.FinishedAt, &r.Frames, &r.Segments); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Segments returns the segments of a run in order.
func (s *Store) Segments(ctx context.Context, runID uuid.UUID) ([]phase.Segment, error) {
	var exists bool
	if err := s.conn.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM analysis_runs WHERE id = $1)", runID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrRunNotFound
	}

	rows, err := s.conn.Query(ctx, `
		SELECT segment, start_frame, impact_frame, end_frame, shot
		FROM segments WHERE run_id = $1 ORDER BY segment
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segs []phase.Segment
	for rows.Next() {
		var seg phase.Segment
		var shot string
		if err := rows.Scan(&seg.ID, &seg.Start, &seg.Impact, &seg.End, &shot); err != nil {
			return nil, err
		}
		seg.Shot = phase.Shot(shot)
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}

// Frames returns the stored metric frames and tags of a run in frame order.
func (s *Store) Frames(ctx context.Context, runID uuid.UUID) ([]biomech.MetricFrame, []phase.Tag, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT frame, timestamp_ns, smoothing_window, phase, segment, shot, metrics
		FROM metric_frames WHERE run_id = $1 ORDER BY frame
	`, runID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var frames []biomech.MetricFrame
	var tags []phase.Tag
	for rows.Next() {
		var m biomech.MetricFrame
		var ts int64
		var ph, shot string
		var segment int
		var metrics []byte
		if err := rows.Scan(&m.Index, &ts, &m.Window, &ph, &segment, &shot, &metrics); err != nil {
			return nil, nil, err
		}
		m.Timestamp = time.Duration(ts)
		if err := decodeMetrics(metrics, &m); err != nil {
			return nil, nil, fmt.Errorf("frame %d: %w", m.Index, err)
		}
		p, ok := phase.ParsePhase(ph)
		if !ok {
			return nil, nil, fmt.Errorf("frame %d: unknown phase %q", m.Index, ph)
		}
		frames = append(frames, m)
		tags = append(tags, phase.Tag{Index: m.Index, Phase: p, Segment: segment, Shot: phase.Shot(shot)})
	}
	return frames, tags, rows.Err()
}

// Reset drops all application tables to clear the database state.
// This is useful for development to force a schema refresh without migrations.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.conn.Exec(ctx, `
		DROP TABLE IF EXISTS metric_frames CASCADE;
		DROP TABLE IF EXISTS segments CASCADE;
		DROP TABLE IF EXISTS analysis_runs CASCADE;
	`)
	return err
}
