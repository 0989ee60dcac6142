// Package posecache keeps estimator output in SQLite so re-running an analysis with
// different thresholds skips pose inference.
package posecache

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresmejia3/crease/internal/pose"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Key identifies one estimator pass over a video.
type Key struct {
	VideoID   string
	SampleFPS float64
	// Model names the estimator settings the poses were produced with, e.g. model
	// complexity and detection threshold.
	Model string
}

// Cache is a SQLite-backed pose cache.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize pose cache schema: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close closes the database.
func (c *Cache) Close() error { return c.db.Close() }

// Get returns the cached frames for key. ok is false on a miss.
func (c *Cache) Get(ctx context.Context, key Key) (frames []pose.RawFrame, ok bool, err error) {
	var count int
	err = c.db.QueryRowContext(ctx,
		"SELECT frames FROM pose_runs WHERE video_id = ? AND sample_fps = ? AND model = ?",
		key.VideoID, key.SampleFPS, key.Model).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rows, err := c.db.QueryContext(ctx,
		"SELECT frame, timestamp_ns, landmarks FROM pose_frames WHERE video_id = ? AND sample_fps = ? AND model = ? ORDER BY frame",
		key.VideoID, key.SampleFPS, key.Model)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	frames = make([]pose.RawFrame, 0, count)
	for rows.Next() {
		var f pose.RawFrame
		var ts int64
		var data string
		if err := rows.Scan(&f.Index, &ts, &data); err != nil {
			return nil, false, err
		}
		f.Timestamp = time.Duration(ts)
		if err := json.Unmarshal([]byte(data), &f.Landmarks); err != nil {
			return nil, false, fmt.Errorf("corrupt cache entry for frame %d: %w", f.Index, err)
		}
		if len(f.Landmarks) == 0 {
			f.Landmarks = nil
		}
		frames = append(frames, f)
	}
	if err := rows.Err(); err != nil {
		return nil, false, err
	}
	if len(frames) != count {
		// incomplete entry, treat as a miss
		return nil, false, nil
	}
	return frames, true, nil
}

// Put replaces the cached frames for key in a single transaction.
func (c *Cache) Put(ctx context.Context, key Key, frames []pose.RawFrame) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"pose_frames", "pose_runs"} {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE video_id = ? AND sample_fps = ? AND model = ?",
			key.VideoID, key.SampleFPS, key.Model); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO pose_runs (video_id, sample_fps, model, frames) VALUES (?, ?, ?, ?)",
		key.VideoID, key.SampleFPS, key.Model, len(frames)); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO pose_frames (video_id, sample_fps, model, frame, timestamp_ns, landmarks) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range frames {
		lms := f.Landmarks
		if lms == nil {
			lms = []pose.RawLandmark{}
		}
		data, err := json.Marshal(lms)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, key.VideoID, key.SampleFPS, key.Model, f.Index, int64(f.Timestamp), string(data)); err != nil {
			return fmt.Errorf("failed to cache frame %d: %w", f.Index, err)
		}
	}
	return tx.Commit()
}

// Purge removes every cached entry of a video and reports how many passes were dropped.
func (c *Cache) Purge(ctx context.Context, videoID string) (int64, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM pose_frames WHERE video_id = ?", videoID); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM pose_runs WHERE video_id = ?", videoID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, tx.Commit()
}
