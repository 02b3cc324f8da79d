// Package sqlite backs the document store with an embedded SQLite database,
// storing each document as a JSON blob keyed by (collection, id). Predicates
// compile to json_extract / json_each expressions so queries stay in SQL.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"kharcha/internal/metrics"
	"kharcha/internal/store"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Query(ctx context.Context, q store.Query) ([]store.Document, error) {
	for _, p := range q.Where {
		if err := p.Validate(); err != nil {
			return nil, err
		}
	}
	metrics.StoreQueries.WithLabelValues(q.Collection).Inc()

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString("SELECT id, data FROM documents WHERE collection = ?")
	args = append(args, q.Collection)

	for _, p := range q.Where {
		switch p.Op {
		case store.OpEqual:
			sb.WriteString(" AND json_extract(data, ?) = ?")
			args = append(args, jsonPath(p.Field), p.Value)
		case store.OpIn:
			sb.WriteString(" AND json_extract(data, ?) IN (" + placeholders(len(p.Values)) + ")")
			args = append(args, jsonPath(p.Field))
			for _, v := range p.Values {
				args = append(args, v)
			}
		case store.OpArrayContainsAny:
			sb.WriteString(" AND EXISTS (SELECT 1 FROM json_each(documents.data, ?) WHERE json_each.value IN (" +
				placeholders(len(p.Values)) + "))")
			args = append(args, jsonPath(p.Field))
			for _, v := range p.Values {
				args = append(args, v)
			}
		}
	}

	if q.OrderBy != "" {
		sb.WriteString(" ORDER BY json_extract(data, ?)")
		args = append(args, jsonPath(q.OrderBy))
		if q.Desc {
			sb.WriteString(" DESC")
		}
	} else {
		sb.WriteString(" ORDER BY id")
	}

	rows, err := s.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", q.Collection, err)
	}
	defer rows.Close()

	var out []store.Document
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc, err := decode(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

func (s *Store) Get(ctx context.Context, collection, id string) (store.Document, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Document{}, store.ErrNotFound
	}
	if err != nil {
		return store.Document{}, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return decode(id, raw)
}

// Set writes a document. With merge=true the write happens inside one
// transaction as read-merge-write, recursing into nested maps, so two
// writers touching different fields of the same document both survive.
func (s *Store) Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error {
	if !merge {
		raw, err := json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("marshal document: %w", err)
		}
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
			ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
			collection, id, raw)
		if err != nil {
			return fmt.Errorf("set %s/%s: %w", collection, id, err)
		}
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin merge tx: %w", err)
	}
	defer tx.Rollback()

	existing := map[string]any{}
	var raw []byte
	err = tx.QueryRowContext(ctx,
		"SELECT data FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read for merge %s/%s: %w", collection, id, err)
	default:
		if err := json.Unmarshal(raw, &existing); err != nil {
			return fmt.Errorf("unmarshal %s/%s: %w", collection, id, err)
		}
	}

	deepMerge(existing, fields)
	merged, err := json.Marshal(existing)
	if err != nil {
		return fmt.Errorf("marshal merged document: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES (?, ?, ?)
		ON CONFLICT (collection, id) DO UPDATE SET data = excluded.data`,
		collection, id, merged)
	if err != nil {
		return fmt.Errorf("write merged %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *Store) Add(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.NewString()
	if err := s.Set(ctx, collection, id, fields, false); err != nil {
		return "", err
	}
	return id, nil
}

func decode(id string, raw []byte) (store.Document, error) {
	data := map[string]any{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return store.Document{}, fmt.Errorf("unmarshal document %s: %w", id, err)
	}
	return store.Document{ID: id, Data: data}, nil
}

func deepMerge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if cur, ok := dst[k].(map[string]any); ok {
				deepMerge(cur, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func jsonPath(field string) string {
	return "$." + field
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
