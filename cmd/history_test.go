package cmd

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loog-project/prefwatch/internal/service"
	bboltStore "github.com/loog-project/prefwatch/internal/store/bbolt"
	"github.com/loog-project/prefwatch/internal/util"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

func TestCollectHistoryGroupsCaptures(t *testing.T) {
	ctx := context.Background()
	cs, err := bboltStore.New(filepath.Join(t.TempDir(), "history.bb"), nil, false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cs.Close() })

	svc := service.NewTrackerService(cs, false)
	defer svc.Close()

	t0 := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)
	t2 := t1.Add(time.Second)

	commit := func(domain string, v plistdiff.Value, at time.Time) {
		_, err := svc.Commit(ctx, domain, v, at)
		require.NoError(t, err)
	}
	commit("com.a", plistdiff.Dictionary{"k": plistdiff.Int(1)}, t0)
	commit("com.b", plistdiff.Dictionary{"k": plistdiff.Int(1)}, t0)
	commit("com.b", plistdiff.Dictionary{"k": plistdiff.Int(2)}, t1)
	commit("com.a", plistdiff.Dictionary{"k": plistdiff.Int(2)}, t1)
	commit("com.a", plistdiff.Dictionary{"k": plistdiff.Int(2), "n": plistdiff.Boolean(true)}, t2)

	prog, err := util.CompileFilter("")
	require.NoError(t, err)

	reports, err := collectHistory(cs, prog, nil)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.True(t, reports[0].Time.Equal(t1))
	require.Len(t, reports[0].Changes, 2)
	assert.Equal(t, "com.a.k", reports[0].Changes[0].Path)
	assert.Equal(t, "com.b.k", reports[0].Changes[1].Path)
	assert.Equal(t, "com.a.n", reports[1].Changes[0].Path)

	onlyB, err := collectHistory(cs, prog, []string{"com.b"})
	require.NoError(t, err)
	require.Len(t, onlyB, 1)
	assert.Equal(t, "com.b.k", onlyB[0].Changes[0].Path)

	added, err := util.CompileFilter("Added()")
	require.NoError(t, err)
	onlyAdded, err := collectHistory(cs, added, nil)
	require.NoError(t, err)
	require.Len(t, onlyAdded, 1)
	assert.Equal(t, plistdiff.Added, onlyAdded[0].Changes[0].Type)
}

func TestHistoryMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.bb")

	rootCmd.SetArgs([]string{"history", path})
	rootCmd.SetOut(io.Discard)
	rootCmd.SetErr(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	err := rootCmd.Execute()
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, statErr := os.Stat(path)
	assert.ErrorIs(t, statErr, os.ErrNotExist, "history must not create the file")
}
