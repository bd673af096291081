package watch

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loog-project/prefwatch/internal/service"
	bboltStore "github.com/loog-project/prefwatch/internal/store/bbolt"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

// fakeSource serves canned domain states.
type fakeSource struct {
	mu       sync.Mutex
	states   map[string]plistdiff.Value
	failing  map[string]bool
	listErr  error
	exported int
}

func newFakeSource(states map[string]plistdiff.Value) *fakeSource {
	return &fakeSource{states: states, failing: map[string]bool{}}
}

func (f *fakeSource) Domains(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	domains := make([]string, 0, len(f.states))
	for d := range f.states {
		domains = append(domains, d)
	}
	return domains, nil
}

func (f *fakeSource) Export(_ context.Context, domain string) (plistdiff.Value, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.exported++
	if f.failing[domain] {
		return nil, errors.New("export failed")
	}
	v, ok := f.states[domain]
	if !ok {
		return nil, errors.New("no such domain")
	}
	return plistdiff.Clone(v), nil
}

func (f *fakeSource) set(domain string, v plistdiff.Value) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v == nil {
		delete(f.states, domain)
		return
	}
	f.states[domain] = v
}

func newTestTracker(t *testing.T) *service.TrackerService {
	t.Helper()
	cs, err := bboltStore.New(filepath.Join(t.TempDir(), "poll.bb"), nil, false)
	require.NoError(t, err)
	svc := service.NewTrackerService(cs, true)
	t.Cleanup(func() {
		svc.Close()
		_ = cs.Close()
	})
	return svc
}

func changeStrings(c *Cycle) []string {
	var out []string
	for _, commit := range c.Commits {
		for _, change := range commit.Changes {
			out = append(out, change.Type.String()+":"+change.Path)
		}
	}
	return out
}

func TestPollLifecycle(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string]plistdiff.Value{
		"com.b": plistdiff.Dictionary{"k": plistdiff.Int(1)},
		"com.a": plistdiff.Dictionary{"k": plistdiff.String("x")},
	})
	p := NewPoller(src, newTestTracker(t), WithParallelism(2))

	first, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), first.Number)
	require.Len(t, first.Commits, 2)
	assert.Equal(t, "com.a", first.Commits[0].Domain)
	assert.True(t, first.Commits[0].Baseline)
	assert.Zero(t, first.Len(), "baseline captures report nothing")

	unchanged, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, unchanged.Commits)

	src.set("com.b", plistdiff.Dictionary{"k": plistdiff.Int(2), "n": plistdiff.Boolean(true)})
	src.set("com.a", nil)
	src.set("com.c", plistdiff.Dictionary{"z": plistdiff.Real(1.5)})

	third, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"removed:com.a",
		"modified:com.b.k",
		"added:com.b.n",
		"added:com.c",
	}, changeStrings(third))
}

func TestPollKeepsStateOfFailedDomain(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string]plistdiff.Value{
		"com.a": plistdiff.Dictionary{"k": plistdiff.Int(1)},
	})
	p := NewPoller(src, newTestTracker(t))

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	src.failing["com.a"] = true
	failed, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.a"}, failed.Failed)
	assert.Empty(t, failed.Commits, "a failed export must not retire the domain")

	delete(src.failing, "com.a")
	src.set("com.a", plistdiff.Dictionary{"k": plistdiff.Int(5)})
	recovered, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"modified:com.a.k"}, changeStrings(recovered))
}

func TestPollDomainFailingInFirstCycleIsNotAdded(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string]plistdiff.Value{
		"com.a": plistdiff.Dictionary{"k": plistdiff.Int(1)},
		"com.b": plistdiff.Dictionary{"k": plistdiff.Int(1)},
	})
	src.failing["com.b"] = true
	p := NewPoller(src, newTestTracker(t))

	first, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"com.b"}, first.Failed)
	assert.Empty(t, changeStrings(first))

	delete(src.failing, "com.b")
	second, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Empty(t, second.Failed)
	assert.Empty(t, changeStrings(second), "a domain listed from the start is not new")

	src.set("com.b", plistdiff.Dictionary{"k": plistdiff.Int(2)})
	third, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"modified:com.b.k"}, changeStrings(third))
}

func TestPollReappearingDomainIsAdded(t *testing.T) {
	ctx := context.Background()
	state := plistdiff.Dictionary{"k": plistdiff.Int(1)}
	src := newFakeSource(map[string]plistdiff.Value{"com.a": state})
	p := NewPoller(src, newTestTracker(t))

	_, err := p.Poll(ctx)
	require.NoError(t, err)

	src.set("com.a", nil)
	gone, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"removed:com.a"}, changeStrings(gone))

	src.set("com.a", state)
	back, err := p.Poll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"added:com.a"}, changeStrings(back))
}

func TestPollExplicitDomains(t *testing.T) {
	ctx := context.Background()
	src := newFakeSource(map[string]plistdiff.Value{
		"com.a": plistdiff.Dictionary{"k": plistdiff.Int(1)},
		"com.b": plistdiff.Dictionary{"k": plistdiff.Int(1)},
	})
	src.listErr = errors.New("listing must not be used")
	p := NewPoller(src, newTestTracker(t), WithDomains("com.b", "com.b"))

	cycle, err := p.Poll(ctx)
	require.NoError(t, err)
	require.Len(t, cycle.Commits, 1)
	assert.Equal(t, "com.b", cycle.Commits[0].Domain)
	assert.Equal(t, 1, src.exported)
}

func TestPollListError(t *testing.T) {
	src := newFakeSource(map[string]plistdiff.Value{})
	src.listErr = errors.New("boom")
	p := NewPoller(src, newTestTracker(t))

	_, err := p.Poll(context.Background())
	assert.ErrorContains(t, err, "boom")
}

func TestRunPollsUntilCancelled(t *testing.T) {
	src := newFakeSource(map[string]plistdiff.Value{
		"com.a": plistdiff.Dictionary{"k": plistdiff.Int(1)},
	})
	p := NewPoller(src, newTestTracker(t), WithInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cycles []uint64
	done := make(chan error, 1)
	go func() {
		done <- p.Run(ctx, func(c *Cycle) {
			cycles = append(cycles, c.Number)
			if len(cycles) == 3 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
	assert.Equal(t, []uint64{1, 2, 3}, cycles)
}

func TestNewPollerClampsParallelism(t *testing.T) {
	p := NewPoller(newFakeSource(nil), nil, WithParallelism(0), WithInterval(-1))
	assert.Equal(t, 1, p.options.Parallelism)
	assert.Equal(t, DefaultInterval, p.options.Interval)
}
