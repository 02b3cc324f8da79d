// Package firestore backs the document store with Cloud Firestore, the
// store the mobile client talks to directly. All predicate limits in the
// store package mirror Firestore's own (the 10-value cap on `in` and
// `array-contains-any` clauses).
package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	cfirestore "cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	goption "google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"kharcha/internal/metrics"
	"kharcha/internal/store"
)

type Store struct {
	client *cfirestore.Client
}

// NewFromEnv creates a Firestore-backed store using environment variables.
// Required: FIRESTORE_PROJECT_ID.
// Optional: FIRESTORE_CREDENTIALS_JSON or GOOGLE_APPLICATION_CREDENTIALS
// for auth (falls back to ADC).
func NewFromEnv(ctx context.Context) (*Store, error) {
	projectID := strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT_ID"))
	if projectID == "" {
		return nil, errors.New("missing FIRESTORE_PROJECT_ID")
	}

	var opts []goption.ClientOption
	if credsJSON := os.Getenv("FIRESTORE_CREDENTIALS_JSON"); credsJSON != "" {
		opts = append(opts, goption.WithCredentialsJSON([]byte(credsJSON)))
	}

	client, err := cfirestore.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	return &Store{client: client}, nil
}

func New(client *cfirestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	for _, p := range q.Where {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	metrics.StoreQueries.WithLabelValues(q.Collection).Inc()

	fq := s.client.Collection(q.Collection).Query
	for _, p := range q.Where {
		switch p.Op {
		case store.OpEqual:
			fq = fq.Where(p.Field, "==", p.Value)
		case store.OpIn:
			fq = fq.Where(p.Field, "in", p.Values)
		case store.OpArrayContainsAny:
			fq = fq.Where(p.Field, "array-contains-any", p.Values)
		}
	}
	if q.OrderBy != "" {
		dir := cfirestore.Asc
		if q.Desc {
			dir = cfirestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}

	it := fq.Documents(ctx)
	defer it.Stop()

	var out []store.Document
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate %s: %w", q.Collection, err)
		}
		out = append(out, store.Document{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return store.Document{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	doc := s.client.Collection(collection).Doc(id)
	var err error
	if merge {
		// MergeAll recurses into nested maps, which is what the delivery
		// tracker's per-date item writes rely on.
		_, err = doc.Set(ctx, fields, cfirestore.MergeAll)
	} else {
		_, err = doc.Set(ctx, fields)
	}
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	ref, _, err := s.client.Collection(collection).Add(ctx, fields)
	if err != nil {
		return "", fmt.Errorf("add to %s: %w", collection, err)
	}
	return ref.ID, nil
}
