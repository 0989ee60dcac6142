// Package records serializes the per-frame analysis output and serves it back read-only.
package records

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pipeline"
)

// Row is the serialized part of a pipeline record: metrics and the phase tag.
type Row struct {
	Metrics biomech.MetricFrame
	Tag     phase.Tag
}

// RowOf extracts the serialized part of a record.
func RowOf(r pipeline.Record) Row {
	return Row{Metrics: r.Metrics, Tag: r.Tag}
}

const fixedLeading = 3 // frame, timestamp_ns, window

// Header returns the column names in their stable order.
func Header() []string {
	h := []string{"frame", "timestamp_ns", "window"}
	for _, name := range biomech.MetricNames {
		h = append(h, name, name+"_raw", name+"_valid")
	}
	return append(h, "phase", "segment", "shot")
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// Encode renders a row as CSV fields. Invalid metrics leave value and raw empty.
func Encode(r Row) []string {
	out := make([]string, 0, fixedLeading+3*biomech.MetricCount+3)
	out = append(out,
		strconv.Itoa(r.Metrics.Index),
		strconv.FormatInt(int64(r.Metrics.Timestamp), 10),
		strconv.Itoa(r.Metrics.Window),
	)
	for _, m := range r.Metrics.Values {
		if !m.Valid {
			out = append(out, "", "", "0")
			continue
		}
		out = append(out, formatFloat(m.Value), formatFloat(m.Raw), "1")
	}
	return append(out, r.Tag.Phase.String(), strconv.Itoa(r.Tag.Segment), string(r.Tag.Shot))
}

// Decode parses fields produced by Encode.
func Decode(fields []string) (Row, error) {
	var r Row
	if len(fields) != len(Header()) {
		return r, fmt.Errorf("expected %d columns, got %d", len(Header()), len(fields))
	}

	var err error
	if r.Metrics.Index, err = strconv.Atoi(fields[0]); err != nil {
		return r, fmt.Errorf("frame: %w", err)
	}
	ns, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return r, fmt.Errorf("timestamp_ns: %w", err)
	}
	r.Metrics.Timestamp = time.Duration(ns)
	if r.Metrics.Window, err = strconv.Atoi(fields[2]); err != nil {
		return r, fmt.Errorf("window: %w", err)
	}

	for id := 0; id < biomech.MetricCount; id++ {
		col := fields[fixedLeading+3*id : fixedLeading+3*id+3]
		name := biomech.MetricNames[id]
		switch col[2] {
		case "0":
			continue
		case "1":
		default:
			return r, fmt.Errorf("%s_valid: unexpected %q", name, col[2])
		}
		m := biomech.Metric{Valid: true}
		if m.Value, err = strconv.ParseFloat(col[0], 64); err != nil {
			return r, fmt.Errorf("%s: %w", name, err)
		}
		if m.Raw, err = strconv.ParseFloat(col[1], 64); err != nil {
			return r, fmt.Errorf("%s_raw: %w", name, err)
		}
		r.Metrics.Values[id] = m
	}

	tail := fields[fixedLeading+3*biomech.MetricCount:]
	p, ok := phase.ParsePhase(tail[0])
	if !ok {
		return r, fmt.Errorf("phase: unknown %q", tail[0])
	}
	seg, err := strconv.Atoi(tail[1])
	if err != nil {
		return r, fmt.Errorf("segment: %w", err)
	}
	var shot phase.Shot
	if tail[2] != "" {
		if shot, ok = phase.ParseShot(tail[2]); !ok {
			return r, fmt.Errorf("shot: unknown %q", tail[2])
		}
	}
	r.Tag = phase.Tag{Index: r.Metrics.Index, Phase: p, Segment: seg, Shot: shot}
	return r, nil
}

// Writer streams rows as CSV. It implements pipeline.RecordSink.
type Writer struct {
	w           *csv.Writer
	wroteHeader bool
	rows        int
}

// NewWriter creates a CSV writer. The header is written with the first row.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: csv.NewWriter(w)}
}

// WriteRecord writes one pipeline record.
func (w *Writer) WriteRecord(_ context.Context, r pipeline.Record) error {
	return w.Write(RowOf(r))
}

// Write writes one row.
func (w *Writer) Write(r Row) error {
	if !w.wroteHeader {
		if err := w.w.Write(Header()); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	w.rows++
	return w.w.Write(Encode(r))
}

// Rows returns the number of rows written.
func (w *Writer) Rows() int { return w.rows }

// Flush writes buffered data and reports any write error.
func (w *Writer) Flush() error {
	if !w.wroteHeader {
		if err := w.w.Write(Header()); err != nil {
			return err
		}
		w.wroteHeader = true
	}
	w.w.Flush()
	return w.w.Error()
}

// ReadAll parses a CSV written by Writer.
func ReadAll(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header())
	cr.ReuseRecord = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty records file")
		}
		return nil, err
	}
	for i, name := range Header() {
		if head[i] != name {
			return nil, fmt.Errorf("unexpected column %d: got %q, want %q", i, head[i], name)
		}
	}

	var rows []Row
	for line := 2; ; line++ {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := Decode(fields)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
}
