package plistdiff

import (
	"fmt"
	"slices"
)

// ChangeType indicates the kind of change recorded at a path.
type ChangeType uint8

const (
	Added ChangeType = iota + 1
	Removed
	Modified
)

func (t ChangeType) String() string {
	switch t {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Modified:
		return "modified"
	default:
		return fmt.Sprintf("ChangeType(%d)", uint8(t))
	}
}

// Change is a single structural difference.
//
// Added changes carry only New, Removed changes only Old, and Modified changes
// both. The values are deep copies and do not alias the compared trees.
type Change struct {
	Type ChangeType
	Path string
	Old  Value
	New  Value
}

func (c Change) String() string {
	switch c.Type {
	case Added:
		return fmt.Sprintf("Added(%s, %v)", c.Path, c.New)
	case Removed:
		return fmt.Sprintf("Removed(%s, %v)", c.Path, c.Old)
	default:
		return fmt.Sprintf("Modified(%s, %v, %v)", c.Path, c.Old, c.New)
	}
}

// Recorder accumulates the changes of one or more Diff calls in the order
// they were found. It is not safe for concurrent use.
type Recorder struct {
	changes []Change
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Added records that path appeared with value v.
func (r *Recorder) Added(path string, v Value) {
	r.changes = append(r.changes, Change{Type: Added, Path: path, New: v})
}

// Removed records that path, holding v, disappeared.
func (r *Recorder) Removed(path string, v Value) {
	r.changes = append(r.changes, Change{Type: Removed, Path: path, Old: v})
}

// Modified records that the value at path changed from one value to another.
func (r *Recorder) Modified(path string, from, to Value) {
	r.changes = append(r.changes, Change{Type: Modified, Path: path, Old: from, New: to})
}

// Changes returns a copy of the recorded changes.
func (r *Recorder) Changes() []Change {
	return slices.Clone(r.changes)
}

// Len returns the number of recorded changes.
func (r *Recorder) Len() int {
	return len(r.changes)
}

// Reset drops all recorded changes so the Recorder can be reused.
func (r *Recorder) Reset() {
	r.changes = r.changes[:0]
}
