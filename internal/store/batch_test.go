package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"kharcha/internal/metrics"
	"kharcha/internal/store"
	"kharcha/internal/store/memory"
)

// countingStore wraps a Store to observe issued queries and inject faults.
type countingStore struct {
	store.Store

	mu      sync.Mutex
	queries []store.Query
	failOn  int // fail the nth query (1-based), 0 disables
}

func (c *countingStore) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	c.mu.Lock()
	c.queries = append(c.queries, q)
	n := len(c.queries)
	c.mu.Unlock()
	if c.failOn != 0 && n == c.failOn {
		return nil, errors.New("store unavailable")
	}
	return c.Store.Query(ctx, q)
}

func seedExpenses(t *testing.T, s store.Store, n int) []string {
	t.Helper()
	ids := make([]string, n)
	for i := range ids {
		gid := fmt.Sprintf("g%d", i)
		ids[i] = gid
		err := s.Set(context.Background(), "expenses", fmt.Sprintf("e%d", i), map[string]any{
			"groupId": gid,
			"amount":  float64(i),
		}, false)
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return ids
}

func TestFetchWhereInChunks(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	groupIDs := seedExpenses(t, cs.Store, 23)

	docs, err := store.FetchWhereIn(context.Background(), cs, "expenses", "groupId", groupIDs)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(docs) != 23 {
		t.Fatalf("got %d docs, want 23", len(docs))
	}

	// 23 ids -> 3 queries of sizes 10, 10, 3.
	if len(cs.queries) != 3 {
		t.Fatalf("got %d queries, want 3", len(cs.queries))
	}
	sizes := map[int]int{}
	for _, q := range cs.queries {
		if len(q.Where) != 1 || q.Where[0].Op != store.OpIn {
			t.Fatalf("unexpected query: %+v", q)
		}
		sizes[len(q.Where[0].Values)]++
	}
	if sizes[10] != 2 || sizes[3] != 1 {
		t.Fatalf("bad chunk sizes: %v", sizes)
	}

	seen := map[string]bool{}
	for _, d := range docs {
		if seen[d.ID] {
			t.Fatalf("duplicate id %s", d.ID)
		}
		seen[d.ID] = true
	}
}

func TestFetchWhereInSingleValueUsesEquality(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	ids := seedExpenses(t, cs.Store, 3)

	docs, err := store.FetchWhereIn(context.Background(), cs, "expenses", "groupId", ids[:1])
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs", len(docs))
	}
	if len(cs.queries) != 1 || cs.queries[0].Where[0].Op != store.OpEqual {
		t.Fatalf("expected one equality query, got %+v", cs.queries)
	}
}

func TestFetchWhereInEmptySkipsStore(t *testing.T) {
	cs := &countingStore{Store: memory.New()}
	docs, err := store.FetchWhereIn(context.Background(), cs, "expenses", "groupId", nil)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if docs != nil || len(cs.queries) != 0 {
		t.Fatalf("empty input should not query: %v %v", docs, cs.queries)
	}
}

func TestFetchWhereInChunkFailureFailsWhole(t *testing.T) {
	cs := &countingStore{Store: memory.New(), failOn: 2}
	groupIDs := seedExpenses(t, cs.Store, 23)

	if _, err := store.FetchWhereIn(context.Background(), cs, "expenses", "groupId", groupIDs); err == nil {
		t.Fatal("expected error when a chunk fails")
	}
}

func TestFetchWhereInToleratesOverlap(t *testing.T) {
	// Two chunk results containing the same document must collapse to one.
	dup := &duplicatingStore{inner: memory.New()}
	_ = dup.inner.Set(context.Background(), "expenses", "e1", map[string]any{"groupId": "g1"}, false)

	ids := make([]string, 11) // force two chunks
	for i := range ids {
		ids[i] = "g1"
	}
	docs, err := store.FetchWhereIn(context.Background(), dup, "expenses", "groupId", ids)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("got %d docs, want 1", len(docs))
	}
}

type duplicatingStore struct {
	inner *memory.Store
}

func (d *duplicatingStore) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	return d.inner.Query(ctx, q)
}
func (d *duplicatingStore) Get(ctx context.Context, c, id string) (store.Document, error) {
	return d.inner.Get(ctx, c, id)
}
func (d *duplicatingStore) Set(ctx context.Context, c, id string, f map[string]any, m bool) error {
	return d.inner.Set(ctx, c, id, f, m)
}
func (d *duplicatingStore) Add(ctx context.Context, c string, f map[string]any) (string, error) {
	return d.inner.Add(ctx, c, f)
}

func TestChunkedFetchCountsEachQuery(t *testing.T) {
	s := memory.New()
	groupIDs := seedExpenses(t, s, 23)

	before := testutil.ToFloat64(metrics.StoreQueries.WithLabelValues("expenses"))
	if _, err := store.FetchWhereIn(context.Background(), s, "expenses", "groupId", groupIDs); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	after := testutil.ToFloat64(metrics.StoreQueries.WithLabelValues("expenses"))
	if after-before != 3 {
		t.Fatalf("query counter delta = %v, want 3 (one per chunk)", after-before)
	}
}
