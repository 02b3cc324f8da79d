package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"kharcha/internal/store"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "kharcha.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSetGetQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Set(ctx, "expenses", "e1", map[string]any{"userId": "u1", "amount": 10.0}, false); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "expenses", "e2", map[string]any{"userId": "u2", "amount": 20.0}, false); err != nil {
		t.Fatalf("set: %v", err)
	}

	doc, err := s.Get(ctx, "expenses", "e1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if doc.Data["userId"] != "u1" {
		t.Fatalf("got %v", doc.Data)
	}

	if _, err := s.Get(ctx, "expenses", "nope"); err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	docs, err := s.Query(ctx, store.Query{
		Collection: "expenses",
		Where:      []store.Predicate{{Field: "userId", Op: store.OpIn, Values: []string{"u1", "u2"}}},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("got %d docs", len(docs))
	}
}

func TestArrayContainsAny(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "users", "u1", map[string]any{"groupIds": []string{"g1", "g2"}}, false)
	_ = s.Set(ctx, "users", "u2", map[string]any{"groupIds": []string{"g3"}}, false)

	docs, err := s.Query(ctx, store.Query{
		Collection: "users",
		Where:      []store.Predicate{{Field: "groupIds", Op: store.OpArrayContainsAny, Values: []string{"g2", "g9"}}},
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "u1" {
		t.Fatalf("got %v", docs)
	}
}

func TestMergeWrite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "deliveryStatus", "g1", map[string]any{
		"2024-03-05": map[string]any{"milk": "delivered"},
	}, false)
	if err := s.Set(ctx, "deliveryStatus", "g1", map[string]any{
		"2024-03-05": map[string]any{"maid": "not_delivered"},
	}, true); err != nil {
		t.Fatalf("merge: %v", err)
	}

	doc, err := s.Get(ctx, "deliveryStatus", "g1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	day, _ := doc.Data["2024-03-05"].(map[string]any)
	if day["milk"] != "delivered" || day["maid"] != "not_delivered" {
		t.Fatalf("merge lost a sibling: %v", doc.Data)
	}
}

func TestOrderBy(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_ = s.Set(ctx, "notifications", "n1", map[string]any{"createdAt": "2024-01-01T00:00:00Z"}, false)
	_ = s.Set(ctx, "notifications", "n2", map[string]any{"createdAt": "2024-02-01T00:00:00Z"}, false)

	docs, err := s.Query(ctx, store.Query{Collection: "notifications", OrderBy: "createdAt", Desc: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "n2" {
		t.Fatalf("bad order: %v", docs)
	}
}

func TestAdd(t *testing.T) {
	s := newTestStore(t)
	id, err := s.Add(context.Background(), "expenses", map[string]any{"title": "milk"})
	if err != nil || id == "" {
		t.Fatalf("add: %q %v", id, err)
	}
	if _, err := s.Get(context.Background(), "expenses", id); err != nil {
		t.Fatalf("get added: %v", err)
	}
}
