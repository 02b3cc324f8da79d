package report

import (
	"context"
	"sort"
	"strings"
	"sync"

	"kharcha/internal/core"
	"kharcha/internal/metrics"
)

// Source produces a report for a viewer. *Service satisfies it; tests
// substitute fakes.
type Source interface {
	Report(ctx context.Context, viewer core.AppUser) (core.Report, []core.Expense, error)
}

// Snapshot is the read-only state the presentation layer renders. Failures
// land in Err; nothing panics past this boundary.
type Snapshot struct {
	Loading  bool
	Err      string
	Report   core.Report
	Expenses []core.Expense
}

// StatsCache holds the latest aggregation result for one consumer and
// recomputes it asynchronously when the visibility scope changes. Each
// refresh bumps a generation counter; a slow fetch whose generation is no
// longer current gets discarded, so a late-arriving stale result can never
// clobber a fresher one.
type StatsCache struct {
	source Source

	mu      sync.Mutex
	gen     uint64
	lastKey string
	snap    Snapshot
}

func NewStatsCache(source Source) *StatsCache {
	return &StatsCache{
		source: source,
		snap:   Snapshot{Report: core.NewReport()},
	}
}

// Refresh starts an asynchronous recomputation for the viewer. The
// returned channel closes once this refresh's result has been applied or
// discarded; callers that don't care may ignore it.
func (c *StatsCache) Refresh(ctx context.Context, viewer core.AppUser) <-chan struct{} {
	c.mu.Lock()
	c.gen++
	gen := c.gen
	c.lastKey = scopeKey(viewer)
	c.snap.Loading = true
	c.snap.Err = ""
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		rep, expenses, err := c.source.Report(ctx, viewer)

		c.mu.Lock()
		defer c.mu.Unlock()
		if gen != c.gen {
			// A newer refresh superseded this one while it was in
			// flight; its result wins, ours gets dropped.
			metrics.CacheRefreshes.WithLabelValues("stale").Inc()
			return
		}
		if err != nil {
			c.snap = Snapshot{Err: err.Error(), Report: core.NewReport()}
			// Forget the scope so an unchanged viewer can still trigger
			// a retry; only successful results are worth memoizing.
			c.lastKey = ""
			metrics.CacheRefreshes.WithLabelValues("error").Inc()
			return
		}
		c.snap = Snapshot{Report: rep, Expenses: expenses}
		metrics.CacheRefreshes.WithLabelValues("ok").Inc()
	}()
	return done
}

// RefreshIfChanged refreshes only when the viewer's scope identity (id,
// role, group list) differs from the last refresh, so re-renders with an
// unchanged scope don't refetch.
func (c *StatsCache) RefreshIfChanged(ctx context.Context, viewer core.AppUser) <-chan struct{} {
	c.mu.Lock()
	same := c.lastKey == scopeKey(viewer) && c.lastKey != ""
	c.mu.Unlock()
	if same {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.Refresh(ctx, viewer)
}

// Snapshot returns the current state.
func (c *StatsCache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Reset clears the cache to its empty state, used on sign-out.
func (c *StatsCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gen++
	c.lastKey = ""
	c.snap = Snapshot{Report: core.NewReport()}
}

func scopeKey(viewer core.AppUser) string {
	gids := append([]string(nil), viewer.GroupIDs...)
	sort.Strings(gids)
	return viewer.ID + "|" + string(viewer.Role) + "|" + strings.Join(gids, ",")
}
