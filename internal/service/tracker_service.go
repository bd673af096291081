package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/loog-project/prefwatch/internal/store"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// Commit describes the outcome of recording one capture of a domain.
type Commit struct {
	Domain   string
	Revision store.RevisionID
	Time     time.Time
	// Baseline is set when the domain had no previous state; Changes is
	// empty in that case.
	Baseline bool
	Changes  []plistdiff.Change
}

// TrackerService records how preference domains change over time.
// It diffs every capture against the domain's latest state, stores the
// resulting change set in a change store and keeps the latest states in an
// optional in-memory cache.
//
// Commits for different domains may run concurrently; commits for the same
// domain must not.
type TrackerService struct {
	cs    store.ChangeStore
	cache *stateCache
}

// NewTrackerService creates a new TrackerService instance.
func NewTrackerService(cs store.ChangeStore, enableCache bool) *TrackerService {
	t := &TrackerService{cs: cs}
	if enableCache {
		t.cache = newStateCache()
	}
	return t
}

// Commit records value as the state of domain captured at at.
//
// The first capture of a domain is stored as a baseline snapshot. Later
// captures are diffed against the latest state; an identical capture stores
// nothing and returns nil. value is retained and must not be modified
// afterwards.
func (t *TrackerService) Commit(
	ctx context.Context,
	domain string,
	value plistdiff.Value,
	at time.Time,
) (*Commit, error) {
	previous, previousID, err := t.latest(ctx, domain)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		snapshot := store.Snapshot{Time: at, Value: store.Value{Value: value}}
		if err := t.cs.SaveSnapshot(ctx, domain, &snapshot); err != nil {
			return nil, fmt.Errorf("failed to save baseline of %s: %w", domain, err)
		}
		t.remember(domain, value, snapshot.ID)

		return &Commit{Domain: domain, Revision: snapshot.ID, Time: at, Baseline: true}, nil
	}

	recorder := plistdiff.NewRecorder()
	plistdiff.Diff(previous, value, recorder, domain)
	if recorder.Len() == 0 {
		return nil, nil
	}

	changes := recorder.Changes()
	rev := &store.Revision{
		PreviousID: previousID,
		Time:       at,
		Changes:    store.FromChanges(changes),
	}
	if err := t.cs.SaveRevision(ctx, domain, rev, value); err != nil {
		return nil, fmt.Errorf("failed to save revision of %s: %w", domain, err)
	}
	t.remember(domain, value, rev.ID)

	return &Commit{Domain: domain, Revision: rev.ID, Time: at, Changes: changes}, nil
}

// Retire records that domain no longer exists. Its whole latest state is
// reported as removed at the domain's root path.
func (t *TrackerService) Retire(ctx context.Context, domain string, at time.Time) (*Commit, error) {
	previous, previousID, err := t.latest(ctx, domain)
	if err != nil {
		return nil, err
	}

	recorder := plistdiff.NewRecorder()
	recorder.Removed(domain, plistdiff.Clone(previous))
	changes := recorder.Changes()

	rev := &store.Revision{
		PreviousID: previousID,
		Time:       at,
		Changes:    store.FromChanges(changes),
	}
	if err := t.cs.SaveRevision(ctx, domain, rev, nil); err != nil {
		return nil, fmt.Errorf("failed to retire %s: %w", domain, err)
	}
	if t.cache != nil {
		t.cache.remove(domain)
	}

	return &Commit{Domain: domain, Revision: rev.ID, Time: at, Changes: changes}, nil
}

// Latest returns the latest recorded state of domain.
func (t *TrackerService) Latest(ctx context.Context, domain string) (plistdiff.Value, store.RevisionID, error) {
	return t.latest(ctx, domain)
}

// Domains lists the domains that currently have a recorded state.
func (t *TrackerService) Domains(ctx context.Context) ([]string, error) {
	return t.cs.Domains(ctx)
}

// WarmCache primes the cache with a known head state.
func (t *TrackerService) WarmCache(domain string, head *store.Snapshot) {
	t.remember(domain, head.Value.Value, head.ID)
}

// Close stops the cache janitor. The change store stays open.
func (t *TrackerService) Close() {
	if t.cache != nil {
		t.cache.close()
	}
}

func (t *TrackerService) latest(ctx context.Context, domain string) (plistdiff.Value, store.RevisionID, error) {
	if t.cache != nil {
		if entry := t.cache.get(domain); entry != nil {
			return entry.state, entry.rev, nil
		}
	}
	head, err := t.cs.LatestState(ctx, domain)
	if err != nil {
		return nil, 0, err
	}
	t.remember(domain, head.Value.Value, head.ID)
	return head.Value.Value, head.ID, nil
}

func (t *TrackerService) remember(domain string, value plistdiff.Value, rev store.RevisionID) {
	if t.cache == nil {
		return
	}
	t.cache.set(domain, &trackerState{state: value, rev: rev})
}
