package store

import (
	"fmt"
	"time"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

type RevisionID uint64

func (id RevisionID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// Snapshot is the full state of a domain at one revision.
type Snapshot struct {
	/// Revision Metadata
	// ID of the revision
	ID RevisionID `msgpack:"i"`
	// PreviousID is the ID of the previous revision. Zero for a baseline.
	PreviousID RevisionID `msgpack:"p,omitempty"`
	// Time the state was captured.
	Time time.Time `msgpack:"t"`

	/// Snapshot Metadata
	// Value is the captured domain.
	Value Value `msgpack:"v"`
}

// Revision is the set of changes between two consecutive captures of a domain.
type Revision struct {
	/// Revision Metadata
	// ID of the revision
	ID RevisionID `msgpack:"i"`
	// PreviousID is the ID of the revision the changes apply to.
	PreviousID RevisionID `msgpack:"p,omitempty"`
	// Time the newer state was captured.
	Time time.Time `msgpack:"t"`

	/// Change Metadata
	// Changes in the order produced by [plistdiff.Diff].
	Changes []Change `msgpack:"c"`
}

// Change is the stored form of a [plistdiff.Change].
type Change struct {
	Type plistdiff.ChangeType `msgpack:"t"`
	Path string               `msgpack:"p"`
	Old  Value                `msgpack:"o"`
	New  Value                `msgpack:"n"`
}

// FromChanges converts diff output into its stored form.
func FromChanges(changes []plistdiff.Change) []Change {
	out := make([]Change, len(changes))
	for i, c := range changes {
		out[i] = Change{
			Type: c.Type,
			Path: c.Path,
			Old:  Value{Value: c.Old},
			New:  Value{Value: c.New},
		}
	}
	return out
}

// ToChanges converts stored changes back into diff records.
func ToChanges(changes []Change) []plistdiff.Change {
	out := make([]plistdiff.Change, len(changes))
	for i, c := range changes {
		out[i] = plistdiff.Change{
			Type: c.Type,
			Path: c.Path,
			Old:  c.Old.Value,
			New:  c.New.Value,
		}
	}
	return out
}
