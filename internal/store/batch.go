package store

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"kharcha/internal/metrics"
)

// FetchWhereIn returns every document in collection whose field value is a
// member of values, split into chunks of at most MaxInValues per query.
// Chunk queries run concurrently; results are merged and deduplicated by
// document id. Any chunk failing fails the whole fetch, so callers never
// aggregate over a silently partial result. An empty value set returns nil
// without touching the store.
func FetchWhereIn(ctx context.Context, s Store, collection, field string, values []string) ([]Document, error) {
	return fetchChunked(ctx, s, collection, field, OpIn, values)
}

// FetchArrayContainsAny is FetchWhereIn for array fields: documents whose
// array field shares at least one element with values.
func FetchArrayContainsAny(ctx context.Context, s Store, collection, field string, values []string) ([]Document, error) {
	return fetchChunked(ctx, s, collection, field, OpArrayContainsAny, values)
}

func fetchChunked(ctx context.Context, s Store, collection, field string, op Op, values []string) ([]Document, error) {
	if len(values) == 0 {
		return nil, nil
	}

	// A single identifier downgrades to an equality predicate, which the
	// store serves cheaper than a one-element membership clause. Array
	// fields keep the membership form since equality means something else
	// there.
	if len(values) == 1 && op == OpIn {
		docs, err := s.Query(ctx, Query{
			Collection: collection,
			Where:      []Predicate{{Field: field, Op: OpEqual, Value: values[0]}},
		})
		if err != nil {
			return nil, fmt.Errorf("query %s by %s: %w", collection, field, err)
		}
		return dedupeByID(docs), nil
	}

	chunks := chunk(values, MaxInValues)
	results := make([][]Document, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, part := range chunks {
		g.Go(func() error {
			metrics.BatchChunks.Inc()
			docs, err := s.Query(gctx, Query{
				Collection: collection,
				Where:      []Predicate{{Field: field, Op: op, Values: part}},
			})
			if err != nil {
				return fmt.Errorf("query %s by %s (chunk %d): %w", collection, field, i, err)
			}
			results[i] = docs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Document
	for _, docs := range results {
		merged = append(merged, docs...)
	}
	return dedupeByID(merged), nil
}

// chunk partitions values into consecutive slices of at most size elements.
func chunk(values []string, size int) [][]string {
	var out [][]string
	for len(values) > size {
		out = append(out, values[:size])
		values = values[size:]
	}
	return append(out, values)
}

// dedupeByID drops repeated document ids, keeping the last occurrence.
// Correct chunking makes overlap impossible, but overlapping chunk results
// are tolerated since identical ids carry identical content.
func dedupeByID(docs []Document) []Document {
	if len(docs) == 0 {
		return nil
	}
	index := make(map[string]int, len(docs))
	out := docs[:0]
	for _, d := range docs {
		if i, ok := index[d.ID]; ok {
			out[i] = d
			continue
		}
		index[d.ID] = len(out)
		out = append(out, d)
	}
	return out
}
