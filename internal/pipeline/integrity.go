package pipeline

import (
	"fmt"

	"github.com/andresmejia3/crease/internal/pose"
)

// IntegrityError reports a broken frame sequence. Temporal windows cannot be trusted
// across it, so the run is aborted before anything is emitted.
type IntegrityError struct {
	Position int
	Index    int
	Expected int
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("frame sequence broken at position %d: got index %d, expected %d (%s)",
		e.Position, e.Index, e.Expected, e.Reason)
}

// Validate checks that frame indices are unique, strictly increasing by one and that
// timestamps never go backwards. Gaps must be represented by empty frames.
func Validate(frames []pose.RawFrame) error {
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1], frames[i]
		expected := prev.Index + 1
		switch {
		case cur.Index == prev.Index:
			return &IntegrityError{Position: i, Index: cur.Index, Expected: expected, Reason: "duplicate frame"}
		case cur.Index < prev.Index:
			return &IntegrityError{Position: i, Index: cur.Index, Expected: expected, Reason: "out of order"}
		case cur.Index > expected:
			return &IntegrityError{Position: i, Index: cur.Index, Expected: expected, Reason: "gap"}
		case cur.Timestamp < prev.Timestamp:
			return &IntegrityError{Position: i, Index: cur.Index, Expected: expected, Reason: "timestamp went backwards"}
		}
	}
	return nil
}
