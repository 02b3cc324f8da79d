package memory

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"kharcha/internal/metrics"
	"kharcha/internal/store"
)

func TestSetGetRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "users", "u1", map[string]any{"email": "a@b.c"}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	doc, err := s.Get(ctx, "users", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["email"] != "a@b.c" {
		t.Fatalf("got %v", doc.Data)
	}

	if _, err := s.Get(ctx, "users", "missing"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMergePreservesSiblings(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Set(ctx, "deliveryStatus", "g1", map[string]any{
		"2024-03-05": map[string]any{"milk": "delivered"},
	}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	// Merging another item under the same date must not clobber milk,
	// and merging another date must not clobber the first date.
	if err := s.Set(ctx, "deliveryStatus", "g1", map[string]any{
		"2024-03-05": map[string]any{"maid": "not_delivered"},
	}, true); err != nil {
		t.Fatalf("merge: %v", err)
	}
	if err := s.Set(ctx, "deliveryStatus", "g1", map[string]any{
		"2024-03-06": map[string]any{"milk": "delivered"},
	}, true); err != nil {
		t.Fatalf("merge: %v", err)
	}

	doc, err := s.Get(ctx, "deliveryStatus", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	day := doc.Data["2024-03-05"].(map[string]any)
	if day["milk"] != "delivered" || day["maid"] != "not_delivered" {
		t.Fatalf("siblings clobbered: %v", day)
	}
	if _, ok := doc.Data["2024-03-06"]; !ok {
		t.Fatalf("second date missing: %v", doc.Data)
	}
}

func TestOverwriteReplacesDocument(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "users", "u1", map[string]any{"a": "1", "b": "2"}, false)
	_ = s.Set(ctx, "users", "u1", map[string]any{"a": "9"}, false)

	doc, _ := s.Get(ctx, "users", "u1")
	if _, ok := doc.Data["b"]; ok {
		t.Fatalf("overwrite kept stale field: %v", doc.Data)
	}
}

func TestQueryPredicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "users", "u1", map[string]any{"id": "u1", "groupIds": []string{"g1"}}, false)
	_ = s.Set(ctx, "users", "u2", map[string]any{"id": "u2", "groupIds": []string{"g2"}}, false)
	_ = s.Set(ctx, "users", "u3", map[string]any{"id": "u3", "groupIds": []string{"g1", "g3"}}, false)

	docs, err := s.Query(ctx, store.Query{
		Collection: "users",
		Where:      []store.Predicate{{Field: "id", Op: store.OpEqual, Value: "u2"}},
	})
	if err != nil || len(docs) != 1 || docs[0].ID != "u2" {
		t.Fatalf("equality: %v %v", docs, err)
	}

	docs, err = s.Query(ctx, store.Query{
		Collection: "users",
		Where:      []store.Predicate{{Field: "groupIds", Op: store.OpArrayContainsAny, Values: []string{"g1"}}},
	})
	if err != nil || len(docs) != 2 {
		t.Fatalf("array-contains-any: %v %v", docs, err)
	}

	// Oversized membership clauses are rejected, like the hosted store.
	big := make([]string, store.MaxInValues+1)
	for i := range big {
		big[i] = "x"
	}
	if _, err := s.Query(ctx, store.Query{
		Collection: "users",
		Where:      []store.Predicate{{Field: "id", Op: store.OpIn, Values: big}},
	}); err == nil {
		t.Fatal("expected error for oversized in clause")
	}
}

func TestQueryOrderBy(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Set(ctx, "notifications", "n1", map[string]any{"createdAt": "2024-01-01T00:00:00Z"}, false)
	_ = s.Set(ctx, "notifications", "n2", map[string]any{"createdAt": "2024-03-01T00:00:00Z"}, false)
	_ = s.Set(ctx, "notifications", "n3", map[string]any{"createdAt": "2024-02-01T00:00:00Z"}, false)

	docs, err := s.Query(ctx, store.Query{Collection: "notifications", OrderBy: "createdAt", Desc: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if docs[0].ID != "n2" || docs[1].ID != "n3" || docs[2].ID != "n1" {
		t.Fatalf("bad order: %v", docs)
	}
}

func TestAddAssignsID(t *testing.T) {
	s := New()
	id, err := s.Add(context.Background(), "expenses", map[string]any{"title": "milk"})
	if err != nil || id == "" {
		t.Fatalf("add: %q %v", id, err)
	}
	if _, err := s.Get(context.Background(), "expenses", id); err != nil {
		t.Fatalf("get added: %v", err)
	}
}

func TestQueryReturnsCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	_ = s.Set(ctx, "users", "u1", map[string]any{"email": "a@b.c"}, false)

	docs, _ := s.Query(ctx, store.Query{Collection: "users"})
	docs[0].Data["email"] = "mutated"

	doc, _ := s.Get(ctx, "users", "u1")
	if doc.Data["email"] != "a@b.c" {
		t.Fatal("query result aliases stored document")
	}
}

func TestAddHonorsContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Add(ctx, "expenses", map[string]any{"title": "x"}); err == nil {
		t.Fatal("add with cancelled context should fail")
	}

	docs, err := s.Query(context.Background(), store.Query{Collection: "expenses"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 0 {
		t.Fatalf("cancelled add must not persist, got %d documents", len(docs))
	}
}

func TestQueryCountsPerCollection(t *testing.T) {
	s := New()
	ctx := context.Background()

	before := testutil.ToFloat64(metrics.StoreQueries.WithLabelValues("users"))
	if _, err := s.Query(ctx, store.Query{Collection: "users"}); err != nil {
		t.Fatalf("query: %v", err)
	}
	if _, err := s.Query(ctx, store.Query{Collection: "users"}); err != nil {
		t.Fatalf("query: %v", err)
	}

	after := testutil.ToFloat64(metrics.StoreQueries.WithLabelValues("users"))
	if after-before != 2 {
		t.Fatalf("query counter delta = %v, want 2", after-before)
	}
}
