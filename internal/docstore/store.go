// Package docstore defines the remote document store the task core talks to:
// schemaless per-collection documents, scoped queries and live snapshots.
package docstore

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrUnavailable      = errors.New("document store unavailable")
	ErrInvalidArgument  = errors.New("invalid argument")
)

// Fields is the key/value body of a document.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is a stored record with its store-assigned id.
type Document struct {
	ID     string
	Fields Fields
}

// Query selects the documents of a collection whose Field equals Value.
type Query struct {
	Collection string
	Field      string
	Value      any
}

// Matches reports whether a document of collection with the given fields is selected by q.
func (q Query) Matches(collection string, fields Fields) bool {
	if collection != q.Collection {
		return false
	}
	v, ok := fields[q.Field]
	return ok && v == q.Value
}

// Snapshot is one complete delivery of a subscription. Err is set when the
// store could not evaluate the query; Documents is nil in that case.
type Snapshot struct {
	Documents []Document
	Err       error
}

// SnapshotFunc receives snapshots for a subscription, one at a time.
type SnapshotFunc func(Snapshot)

// Unsubscribe stops a subscription. It is safe to call more than once.
type Unsubscribe func()

// Store is the narrow document store contract consumed by the task core.
type Store interface {
	QueryScoped(ctx context.Context, q Query) ([]Document, error)
	Subscribe(ctx context.Context, q Query, fn SnapshotFunc) (Unsubscribe, error)
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	Mutate(ctx context.Context, collection, id string, partial Fields) error
	Remove(ctx context.Context, collection, id string) error
}

// Backend is a Store that can also load single documents; servers use it to
// check ownership before mutating on behalf of a caller.
type Backend interface {
	Store
	Get(ctx context.Context, collection, id string) (Document, error)
}

// ValidateQuery checks that q names a collection and field and compares against a scalar.
func ValidateQuery(q Query) error {
	if q.Collection == "" || q.Field == "" {
		return ErrInvalidArgument
	}
	switch q.Value.(type) {
	case string, bool, float64, int, int64:
		return nil
	default:
		return ErrInvalidArgument
	}
}
