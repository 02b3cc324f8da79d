// Package store defines the document-store boundary the rest of the module
// is written against: collections of schemaless documents with equality and
// membership predicates, field-merge writes, and store-assigned ids.
// Backends live in the subpackages (memory, sqlite, firestore).
package store

import (
	"context"
	"errors"
	"fmt"
)

// MaxInValues is the store's hard limit on "value is one of N" predicates.
// Larger identifier sets must go through FetchWhereIn, which chunks them.
const MaxInValues = 10

var (
	ErrNotFound     = errors.New("document not found")
	ErrEmptyIn      = errors.New("membership predicate with no values")
	ErrTooManyIn    = fmt.Errorf("membership predicate exceeds %d values", MaxInValues)
	ErrBadPredicate = errors.New("unsupported predicate")
)

type Op string

const (
	// OpEqual matches documents whose field equals a single value.
	OpEqual Op = "=="
	// OpIn matches documents whose field is one of at most MaxInValues values.
	OpIn Op = "in"
	// OpArrayContainsAny matches documents whose array field shares at
	// least one element with the given values (same MaxInValues limit).
	OpArrayContainsAny Op = "array-contains-any"
)

// Document is one stored record plus its store-assigned id.
type Document struct {
	ID   string
	Data map[string]any
}

// Predicate is a single where-clause on an indexed field.
type Predicate struct {
	Field  string
	Op     Op
	Value  string   // for OpEqual
	Values []string // for OpIn / OpArrayContainsAny
}

// Query addresses one collection with optional predicates and ordering.
type Query struct {
	Collection string
	Where      []Predicate
	OrderBy    string
	Desc       bool
}

// Store is the interface every backend implements. Set with merge=true
// performs a field-level union with the existing document, recursing into
// nested maps; merge=false replaces the whole document.
type Store interface {
	Query(ctx context.Context, q Query) ([]Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, fields map[string]any, merge bool) error
	Add(ctx context.Context, collection string, fields map[string]any) (string, error)
}

// Validate rejects predicates no backend can serve, so that all backends
// fail the same way.
func (p Predicate) Validate() error {
	switch p.Op {
	case OpEqual:
		return nil
	case OpIn, OpArrayContainsAny:
		if len(p.Values) == 0 {
			return ErrEmptyIn
		}
		if len(p.Values) > MaxInValues {
			return ErrTooManyIn
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrBadPredicate, p.Op)
	}
}
