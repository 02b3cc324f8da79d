// Package memory is an in-process Store used by tests and local
// development. It mirrors the hosted backend's semantics: membership
// predicates capped at store.MaxInValues, field-merge writes that recurse
// into nested maps, and store-assigned ids.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"kharcha/internal/metrics"
	"kharcha/internal/store"
)

type Store struct {
	mu   sync.Mutex
	data map[string]map[string]map[string]any // collection -> id -> fields
}

func New() *Store {
	return &Store{data: map[string]map[string]map[string]any{}}
}

func (s *Store) Query(_ context.Context, q store.Query) ([]store.Document, error) {
	for _, p := range q.Where {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	metrics.StoreQueries.WithLabelValues(q.Collection).Inc()

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []store.Document
	for id, fields := range s.data[q.Collection] {
		if matches(fields, q.Where) {
			out = append(out, store.Document{ID: id, Data: deepCopy(fields)})
		}
	}

	if q.OrderBy != "" {
		sort.SliceStable(out, func(i, j int) bool {
			less := lessValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if q.Desc {
				return !less && !equalValues(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			}
			return less
		})
	} else {
		// Map iteration order is random; keep results stable for callers.
		sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (store.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fields, ok := s.data[collection][id]
	if !ok {
		return store.Document{}, store.ErrNotFound
	}
	return store.Document{ID: id, Data: deepCopy(fields)}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.data[collection]
	if coll == nil {
		coll = map[string]map[string]any{}
		s.data[collection] = coll
	}

	if merge {
		existing := coll[id]
		if existing == nil {
			existing = map[string]any{}
			coll[id] = existing
		}
		deepMerge(existing, fields)
		return nil
	}
	coll[id] = deepCopy(fields)
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	return id, s.Set(ctx, collection, id, fields, false)
}

func matches(fields map[string]any, preds []store.Predicate) bool {
	for _, p := range preds {
		switch p.Op {
		case store.OpEqual:
			if v, _ := fields[p.Field].(string); v != p.Value {
				return false
			}
		case store.OpIn:
			v, _ := fields[p.Field].(string)
			if !contains(p.Values, v) {
				return false
			}
		case store.OpArrayContainsAny:
			if !anyOverlap(fields[p.Field], p.Values) {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func contains(values []string, v string) bool {
	for _, c := range values {
		if c == v {
			return true
		}
	}
	return false
}

func anyOverlap(field any, values []string) bool {
	switch arr := field.(type) {
	case []string:
		for _, e := range arr {
			if contains(values, e) {
				return true
			}
		}
	case []any:
		for _, e := range arr {
			if s, ok := e.(string); ok && contains(values, s) {
				return true
			}
		}
	}
	return false
}

// deepMerge unions src into dst field by field, recursing into nested maps
// so sibling keys of an untouched branch survive a merge write.
func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				deepMerge(cur, sub)
				continue
			}
			dst[k] = deepCopy(sub)
			continue
		}
		dst[k] = v
	}
}

func deepCopy(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if sub, ok := v.(map[string]any); ok {
			out[k] = deepCopy(sub)
			continue
		}
		if arr, ok := v.([]string); ok {
			out[k] = append([]string(nil), arr...)
			continue
		}
		out[k] = v
	}
	return out
}

func lessValues(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return av < bv
	case float64:
		bv, _ := b.(float64)
		return av < bv
	}
	return false
}

func equalValues(a, b any) bool {
	return !lessValues(a, b) && !lessValues(b, a)
}
