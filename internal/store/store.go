package store

import (
	"context"
	"errors"

	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidRevision = errors.New("invalid revision")
)

// ChangeStore persists, per domain, a baseline snapshot, the change
// revisions recorded after it, and the latest full state.
type ChangeStore interface {
	// SaveSnapshot stores snap as a new revision and makes it the domain's
	// latest state. snap.ID is assigned by the store.
	SaveSnapshot(ctx context.Context, domain string, snap *Snapshot) error
	// SaveRevision stores rev as a new revision and replaces the domain's
	// latest state with state. A nil state retires the domain. rev.ID is
	// assigned by the store.
	SaveRevision(ctx context.Context, domain string, rev *Revision, state plistdiff.Value) error

	GetSnapshot(ctx context.Context, domain string, id RevisionID) (*Snapshot, error)
	GetRevision(ctx context.Context, domain string, id RevisionID) (*Revision, error)
	// Get returns either the snapshot or the change revision stored under id.
	Get(ctx context.Context, domain string, id RevisionID) (*Snapshot, *Revision, error)

	GetLatestRevision(ctx context.Context, domain string) (RevisionID, error)
	// LatestState returns the domain's latest full state and the revision it
	// belongs to.
	LatestState(ctx context.Context, domain string) (*Snapshot, error)

	// Domains lists every domain with a latest state.
	Domains(ctx context.Context) ([]string, error)
	// WalkRevisions calls fn for every stored revision, ordered by domain and
	// then by revision ID. Exactly one of snapshot and revision is non-nil.
	// Returning false stops the walk.
	WalkRevisions(fn func(domain string, snapshot *Snapshot, revision *Revision) bool) error

	Close() error
}
