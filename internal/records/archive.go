package records

import (
	"fmt"

	"github.com/andresmejia3/crease/internal/biomech"
	"github.com/andresmejia3/crease/internal/phase"
	"github.com/andresmejia3/crease/internal/pose"
)

// Entry is everything known about one frame.
type Entry struct {
	Row         Row
	Skeleton    pose.Skeleton
	HasSkeleton bool
}

// Archive gives read-only access to a finished run by frame index. Lookups return
// copies; there is no way to modify an archive after it is built.
type Archive struct {
	first   int
	entries []Entry
}

// NewArchive indexes rows and, optionally, the skeletons of the same run. Rows must be
// contiguous; skeletons without a matching row are ignored.
func NewArchive(rows []Row, skeletons []pose.Skeleton) (*Archive, error) {
	a := &Archive{entries: make([]Entry, len(rows))}
	if len(rows) == 0 {
		return a, nil
	}
	a.first = rows[0].Metrics.Index
	for i, r := range rows {
		if want := a.first + i; r.Metrics.Index != want {
			return nil, fmt.Errorf("records not contiguous: row %d has frame %d, expected %d", i, r.Metrics.Index, want)
		}
		a.entries[i].Row = r
	}
	for _, s := range skeletons {
		if i := s.Index - a.first; i >= 0 && i < len(a.entries) {
			a.entries[i].Skeleton = s
			a.entries[i].HasSkeleton = true
		}
	}
	return a, nil
}

// Len returns the number of frames.
func (a *Archive) Len() int { return len(a.entries) }

// Bounds returns the first and last frame index. ok is false for an empty archive.
func (a *Archive) Bounds() (first, last int, ok bool) {
	if len(a.entries) == 0 {
		return 0, 0, false
	}
	return a.first, a.first + len(a.entries) - 1, true
}

// Lookup returns the entry for a frame index.
func (a *Archive) Lookup(index int) (Entry, bool) {
	i := index - a.first
	if i < 0 || i >= len(a.entries) {
		return Entry{}, false
	}
	return a.entries[i], true
}

// Series returns the frame indices and values of one metric.
func (a *Archive) Series(id biomech.MetricID) ([]int, []biomech.Metric) {
	idx := make([]int, len(a.entries))
	vals := make([]biomech.Metric, len(a.entries))
	for i, e := range a.entries {
		idx[i] = e.Row.Metrics.Index
		vals[i] = e.Row.Metrics.Values[id]
	}
	return idx, vals
}

// Segments reconstructs the action segments from the frame tags.
func (a *Archive) Segments() []phase.Segment {
	var out []phase.Segment
	var cur *phase.Segment
	for _, e := range a.entries {
		t := e.Row.Tag
		if t.Segment == 0 || (cur != nil && cur.ID != t.Segment) {
			if cur != nil {
				out = append(out, *cur)
				cur = nil
			}
		}
		if t.Segment == 0 {
			continue
		}
		if cur == nil {
			cur = &phase.Segment{ID: t.Segment, Start: t.Index, Impact: -1}
		}
		cur.End = t.Index
		if t.Phase == phase.Impact && cur.Impact < 0 {
			cur.Impact = t.Index
		}
		if t.Shot != "" {
			cur.Shot = t.Shot
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}
