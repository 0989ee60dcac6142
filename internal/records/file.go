package records

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andresmejia3/crease/internal/pose"
)

// File is a CSV writer backed by a temporary file that only replaces the target path on
// Commit, so an aborted run never leaves a truncated records file behind.
type File struct {
	*Writer
	f    *os.File
	path string
}

// Create opens a temporary file next to path.
func Create(path string) (*File, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary records file: %w", err)
	}
	return &File{Writer: NewWriter(f), f: f, path: path}, nil
}

// Commit flushes the data and moves it into place.
func (f *File) Commit() error {
	if err := f.Writer.Flush(); err != nil {
		f.Abort()
		return fmt.Errorf("failed to write records: %w", err)
	}
	if err := f.f.Sync(); err != nil {
		f.Abort()
		return fmt.Errorf("failed to sync records: %w", err)
	}
	if err := f.f.Close(); err != nil {
		os.Remove(f.f.Name())
		return fmt.Errorf("failed to close records: %w", err)
	}
	if err := os.Rename(f.f.Name(), f.path); err != nil {
		os.Remove(f.f.Name())
		return fmt.Errorf("failed to move records into place: %w", err)
	}
	return nil
}

// Abort discards the temporary file. It is safe to call after Commit.
func (f *File) Abort() {
	f.f.Close()
	os.Remove(f.f.Name())
}

// Load reads a records CSV from disk.
func Load(path string) ([]Row, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	rows, err := ReadAll(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// SaveLandmarks writes raw estimator frames as a JSON array. The file can be replayed
// as a ghost reference or re-analysed without running the estimator.
func SaveLandmarks(path string, frames []pose.RawFrame) error {
	data, err := json.Marshal(frames)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadLandmarks reads a file written by SaveLandmarks.
func LoadLandmarks(path string) ([]pose.RawFrame, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var frames []pose.RawFrame
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return frames, nil
}
