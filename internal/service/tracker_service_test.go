package service_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loog-project/prefwatch/internal/service"
	"github.com/loog-project/prefwatch/internal/store"
	bboltStore "github.com/loog-project/prefwatch/internal/store/bbolt"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

var at = time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

func newTracker(t *testing.T, enableCache bool) (*service.TrackerService, *bboltStore.Store) {
	t.Helper()
	cs, err := bboltStore.New(filepath.Join(t.TempDir(), "tracker.bb"), nil, false)
	require.NoError(t, err)
	svc := service.NewTrackerService(cs, enableCache)
	t.Cleanup(func() {
		svc.Close()
		_ = cs.Close()
	})
	return svc, cs
}

func TestCommitLifecycle(t *testing.T) {
	for _, enableCache := range []bool{true, false} {
		t.Run("cache="+strconv.FormatBool(enableCache), func(t *testing.T) {
			ctx := context.Background()
			svc, cs := newTracker(t, enableCache)

			v0 := plistdiff.Dictionary{"a": plistdiff.Int(1), "b": plistdiff.Dictionary{"x": plistdiff.Int(1)}}
			v1 := plistdiff.Dictionary{
				"a": plistdiff.Int(2),
				"b": plistdiff.Dictionary{"x": plistdiff.Int(1), "y": plistdiff.Int(2)},
				"c": plistdiff.Int(3),
			}

			first, err := svc.Commit(ctx, "dom", v0, at)
			require.NoError(t, err)
			require.NotNil(t, first)
			assert.True(t, first.Baseline)
			assert.Empty(t, first.Changes)

			same, err := svc.Commit(ctx, "dom", plistdiff.Clone(v0), at.Add(time.Second))
			require.NoError(t, err)
			assert.Nil(t, same, "unchanged capture must not be committed")

			second, err := svc.Commit(ctx, "dom", v1, at.Add(2*time.Second))
			require.NoError(t, err)
			require.NotNil(t, second)
			assert.False(t, second.Baseline)
			assert.Equal(t, store.RevisionID(1), second.Revision)

			var paths []string
			for _, c := range second.Changes {
				paths = append(paths, c.Type.String()+":"+c.Path)
			}
			assert.Equal(t, []string{"modified:dom.a", "added:dom.b.y", "added:dom.c"}, paths)

			stored, err := cs.GetRevision(ctx, "dom", second.Revision)
			require.NoError(t, err)
			assert.Equal(t, store.RevisionID(0), stored.PreviousID)
			assert.Len(t, stored.Changes, 3)

			latest, rev, err := svc.Latest(ctx, "dom")
			require.NoError(t, err)
			assert.Equal(t, store.RevisionID(1), rev)
			assert.True(t, plistdiff.Equal(v1, latest))
		})
	}
}

func TestCommitResumesFromStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "resume.bb")

	cs, err := bboltStore.New(path, nil, true)
	require.NoError(t, err)
	svc := service.NewTrackerService(cs, true)
	_, err = svc.Commit(ctx, "dom", plistdiff.Dictionary{"k": plistdiff.String("v1")}, at)
	require.NoError(t, err)
	svc.Close()
	require.NoError(t, cs.Close())

	cs, err = bboltStore.New(path, nil, true)
	require.NoError(t, err)
	svc = service.NewTrackerService(cs, true)
	t.Cleanup(func() {
		svc.Close()
		_ = cs.Close()
	})

	commit, err := svc.Commit(ctx, "dom", plistdiff.Dictionary{"k": plistdiff.String("v2")}, at)
	require.NoError(t, err)
	require.NotNil(t, commit)
	assert.False(t, commit.Baseline)
	require.Len(t, commit.Changes, 1)
	assert.Equal(t, "dom.k", commit.Changes[0].Path)
}

func TestRetire(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTracker(t, true)

	state := plistdiff.Dictionary{"k": plistdiff.Boolean(true)}
	_, err := svc.Commit(ctx, "gone.domain", state, at)
	require.NoError(t, err)

	commit, err := svc.Retire(ctx, "gone.domain", at.Add(time.Second))
	require.NoError(t, err)
	require.Len(t, commit.Changes, 1)
	assert.Equal(t, plistdiff.Removed, commit.Changes[0].Type)
	assert.Equal(t, "gone.domain", commit.Changes[0].Path)
	assert.True(t, plistdiff.Equal(state, commit.Changes[0].Old))

	domains, err := svc.Domains(ctx)
	require.NoError(t, err)
	assert.Empty(t, domains)

	_, err = svc.Retire(ctx, "gone.domain", at)
	assert.ErrorIs(t, err, store.ErrNotFound)

	again, err := svc.Commit(ctx, "gone.domain", state, at.Add(2*time.Second))
	require.NoError(t, err)
	assert.True(t, again.Baseline)
}

func BenchmarkCommit_Cache(b *testing.B) {
	benchCommit(b, true)
}

func BenchmarkCommit_NoCache(b *testing.B) {
	benchCommit(b, false)
}

// benchCommit is the shared benchmark body.
func benchCommit(b *testing.B, enableCache bool) {
	tempDir := b.TempDir()
	dbPath := fmt.Sprintf("%s/bench-%t.db", tempDir, enableCache)

	cs, err := bboltStore.New(dbPath, nil, false)
	if err != nil {
		b.Fatalf("init store: %v", err)
	}
	defer func(cs *bboltStore.Store) {
		_ = cs.Close()
	}(cs)

	svc := service.NewTrackerService(cs, enableCache)
	defer svc.Close()

	// make this domain large
	data := plistdiff.Dictionary{}
	for i := 0; i < 500; i++ {
		data[rand.Text()] = plistdiff.String(rand.Text())
	}

	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		// mutate one key each commit
		value := plistdiff.Dictionary{
			"data":     data,
			"revision": plistdiff.Int(int64(i)),
		}
		if _, err := svc.Commit(b.Context(), "bench.domain", value, time.Now()); err != nil {
			b.Fatalf("commit error: %v", err)
		}
	}
	b.StopTimer()

	// record file size for visibility
	if fi, err := os.Stat(dbPath); err == nil {
		b.ReportMetric(float64(fi.Size())/1e3, "KB_db")
	} else {
		b.Fatalf("stat db file: %v", err)
	}
}
