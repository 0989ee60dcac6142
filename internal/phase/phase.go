// Package phase segments the metric stream into swing phases with a debounced state
// machine and labels each detected action with a shot type.
package phase

import (
	"fmt"
	"strings"
)

// Phase is the per-frame swing phase.
type Phase int

const (
	Unknown Phase = iota
	Idle
	Setup
	Load
	Impact
	FollowThrough
)

var phaseNames = [...]string{"UNKNOWN", "IDLE", "SETUP", "LOAD", "IMPACT", "FOLLOW_THROUGH"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return phaseNames[Unknown]
	}
	return phaseNames[p]
}

// ParsePhase resolves a phase name; unrecognised names map to Unknown.
func ParsePhase(s string) (Phase, bool) {
	for i, n := range phaseNames {
		if n == s {
			return Phase(i), true
		}
	}
	return Unknown, false
}

// InSegment reports whether the phase belongs to an action segment.
func (p Phase) InSegment() bool {
	return p == Load || p == Impact || p == FollowThrough
}

// priority orders conflicting transitions; higher wins.
func (p Phase) priority() int {
	switch p {
	case Impact:
		return 4
	case Load:
		return 3
	case FollowThrough:
		return 2
	case Setup:
		return 1
	}
	return 0
}

// Shot is the heuristic shot-type label of a segment.
type Shot string

const (
	Drive        Shot = "DRIVE"
	Cut          Shot = "CUT"
	Pull         Shot = "PULL"
	Defensive    Shot = "DEFENSIVE"
	Unclassified Shot = "UNCLASSIFIED"
)

// ParseShot accepts a label case-insensitively.
func ParseShot(s string) (Shot, bool) {
	switch sh := Shot(strings.ToUpper(s)); sh {
	case Drive, Cut, Pull, Defensive, Unclassified:
		return sh, true
	}
	return "", false
}

// Tag is the classifier output for one frame. Segment is 0 outside action segments and
// Shot is empty until the segment's impact has been classified.
type Tag struct {
	Index   int
	Phase   Phase
	Segment int
	Shot    Shot
}

// Segment is a closed action: the frames from LOAD (or a direct SETUP impact) through
// the last FOLLOW_THROUGH frame.
type Segment struct {
	ID     int
	Start  int
	Impact int
	End    int
	Shot   Shot
}

// Frames returns the number of frames in the segment.
func (s Segment) Frames() int { return s.End - s.Start + 1 }

// StateError reports simultaneous conflicting transitions. It is never fatal: the
// classifier resolves it by priority and carries on.
type StateError struct {
	Index      int
	From       Phase
	Candidates []Phase
	Chosen     Phase
}

func (e *StateError) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.String()
	}
	return fmt.Sprintf("frame %d: conflicting transitions from %s to [%s], chose %s",
		e.Index, e.From, strings.Join(names, " "), e.Chosen)
}
