// Package store persists questionnaire documents to an append-only collection.
// Documents are never updated or deleted through this package.
package store

import (
	"context"
	"errors"
)

// DefaultCollection is the collection quick-test answers are written to.
const DefaultCollection = "quick_tests"

// Document is a schema-flexible record as written to the collection.
type Document map[string]any

// Record is a stored document together with its server-assigned identifier.
type Record struct {
	ID   string
	Data Document
}

// Store is an append-only document collection.
type Store interface {
	// Add writes doc as a new document and returns its identifier.
	Add(ctx context.Context, doc Document) (string, error)
	// List returns every document in the collection.
	List(ctx context.Context) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrEmptyDocument = errors.New("store: empty document")

// StringField returns the string value stored under key, or "".
func (d Document) StringField(key string) string {
	if v, ok := d[key].(string); ok {
		return v
	}
	return ""
}
