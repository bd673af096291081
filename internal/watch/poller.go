// Package watch polls preference domains and commits every capture to a
// tracker.
package watch

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/loog-project/prefwatch/internal/service"
	"github.com/loog-project/prefwatch/internal/util"
	"github.com/loog-project/prefwatch/pkg/plistdiff"
)

const (
	DefaultInterval = time.Second
	maxParallelism  = 64
)

// Source lists and exports preference domains.
type Source interface {
	Domains(ctx context.Context) ([]string, error)
	Export(ctx context.Context, domain string) (plistdiff.Value, error)
}

// Cycle is the result of one poll.
type Cycle struct {
	Number uint64
	At     time.Time
	// Commits holds one entry per domain that changed, sorted by domain.
	Commits []*service.Commit
	// Failed lists the domains that could not be captured.
	Failed []string
}

// Len returns the number of changes in the cycle.
func (c *Cycle) Len() int {
	n := 0
	for _, commit := range c.Commits {
		n += len(commit.Changes)
	}
	return n
}

// Options for NewPoller.
type Options struct {
	Interval    time.Duration
	Parallelism int
	// Domains restricts polling to these domains. Empty means every domain
	// the source lists.
	Domains []string
	Logger  zerolog.Logger
	// Clock returns the capture time. Defaults to time.Now.
	Clock func() time.Time
}

func WithInterval(d time.Duration) func(*Options) {
	return func(o *Options) { o.Interval = d }
}

func WithParallelism(n int) func(*Options) {
	return func(o *Options) { o.Parallelism = n }
}

func WithDomains(domains ...string) func(*Options) {
	return func(o *Options) { o.Domains = domains }
}

func WithLogger(l zerolog.Logger) func(*Options) {
	return func(o *Options) { o.Logger = l }
}

func WithClock(fn func() time.Time) func(*Options) {
	return func(o *Options) { o.Clock = fn }
}

// Poller captures domains from a Source and commits them to a tracker.
type Poller struct {
	source  Source
	tracker *service.TrackerService
	options Options

	mu    sync.Mutex // serializes Poll
	cycle uint64
	// known holds the domains with a recorded state.
	known map[string]struct{}
	// listed holds the domains selected in the previous cycle, whether or
	// not their export succeeded.
	listed map[string]struct{}
	seeded bool
}

// NewPoller creates a Poller.
func NewPoller(source Source, tracker *service.TrackerService, opts ...func(*Options)) *Poller {
	options := Options{
		Interval:    DefaultInterval,
		Parallelism: runtime.NumCPU(),
		Logger:      zerolog.Nop(),
		Clock:       time.Now,
	}
	for _, fn := range opts {
		fn(&options)
	}
	if options.Interval <= 0 {
		options.Interval = DefaultInterval
	}
	options.Parallelism = util.Clamp(options.Parallelism, 1, maxParallelism)
	if options.Clock == nil {
		options.Clock = time.Now
	}
	return &Poller{
		source:  source,
		tracker: tracker,
		options: options,
		known:   make(map[string]struct{}),
		listed:  make(map[string]struct{}),
	}
}

// Poll captures every selected domain once.
//
// Domains that fail to export keep their previous state and are listed in
// Cycle.Failed. When the full domain list is polled, domains that are no
// longer listed are retired. A domain that was not listed in the previous
// cycle, and appears after the first one, is reported as a single addition
// of its whole state.
func (p *Poller) Poll(ctx context.Context) (*Cycle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	explicit := len(p.options.Domains) > 0
	domains := slices.Clone(p.options.Domains)
	if !explicit {
		listed, err := p.source.Domains(ctx)
		if err != nil {
			return nil, fmt.Errorf("list domains: %w", err)
		}
		domains = listed
	}
	slices.Sort(domains)
	domains = slices.Compact(domains)

	if !p.seeded {
		// domains recorded by an earlier run count as known
		if !explicit {
			stored, err := p.tracker.Domains(ctx)
			if err != nil {
				return nil, fmt.Errorf("list recorded domains: %w", err)
			}
			for _, d := range stored {
				p.known[d] = struct{}{}
			}
		}
		p.seeded = true
	}

	p.cycle++
	cycle := &Cycle{Number: p.cycle, At: p.options.Clock()}
	l := p.options.Logger.With().Uint64("cycle", cycle.Number).Logger()

	commits := make([]*service.Commit, len(domains))
	failed := make([]bool, len(domains))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Parallelism)
	for i, domain := range domains {
		g.Go(func() error {
			dl := l.With().Str("domain", domain).Logger()

			value, err := p.source.Export(gctx, domain)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				dl.Warn().Err(err).Msg("Cannot export domain, keeping previous state")
				failed[i] = true
				return nil
			}

			commit, err := p.tracker.Commit(gctx, domain, value, cycle.At)
			if err != nil {
				dl.Error().Err(err).Msg("Cannot commit domain")
				failed[i] = true
				return nil
			}
			_, wasListed := p.listed[domain]
			if commit != nil && commit.Baseline && cycle.Number > 1 && !wasListed {
				rec := plistdiff.NewRecorder()
				rec.Added(domain, plistdiff.Clone(value))
				commit.Changes = rec.Changes()
			}
			commits[i] = commit
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(domains))
	for i, domain := range domains {
		if failed[i] {
			cycle.Failed = append(cycle.Failed, domain)
			if _, ok := p.known[domain]; ok {
				seen[domain] = struct{}{}
			}
			continue
		}
		seen[domain] = struct{}{}
		if commits[i] != nil && (len(commits[i].Changes) > 0 || commits[i].Baseline) {
			cycle.Commits = append(cycle.Commits, commits[i])
		}
	}

	if !explicit {
		for _, domain := range slices.Sorted(maps.Keys(p.known)) {
			if _, ok := seen[domain]; ok {
				continue
			}
			commit, err := p.tracker.Retire(ctx, domain, cycle.At)
			if err != nil {
				l.Error().Err(err).Str("domain", domain).Msg("Cannot retire domain")
				continue
			}
			l.Debug().Str("domain", domain).Msg("Domain vanished")
			cycle.Commits = append(cycle.Commits, commit)
		}
	}
	p.known = seen
	p.listed = make(map[string]struct{}, len(domains))
	for _, domain := range domains {
		p.listed[domain] = struct{}{}
	}

	slices.SortFunc(cycle.Commits, func(a, b *service.Commit) int {
		return cmp.Compare(a.Domain, b.Domain)
	})

	l.Debug().
		Int("domains", len(domains)).
		Int("changes", cycle.Len()).
		Int("failed", len(cycle.Failed)).
		Msg("Poll finished")

	return cycle, nil
}

// Run polls once immediately and then every interval until ctx is done.
// handler is called with every completed cycle. A cycle that fails as a whole
// is logged and skipped.
func (p *Poller) Run(ctx context.Context, handler func(*Cycle)) error {
	ticker := time.NewTicker(p.options.Interval)
	defer ticker.Stop()

	for {
		cycle, err := p.Poll(ctx)
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			p.options.Logger.Error().Err(err).Msg("Poll failed, skipping cycle")
		default:
			handler(cycle)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
