// Package remote defines the contract with the remote document store: a
// managed service exposing collection/document CRUD, query-by-field and
// change-notification subscriptions. The cache layer only ever talks to
// these interfaces; concrete adapters live in subpackages.
package remote

import (
	"context"
	"encoding/json"
)

// FieldUpdatedAt is the record field carrying the remote last-modified time
// in epoch milliseconds. Incremental pulls filter on it.
const FieldUpdatedAt = "updated_at"

// Record is one remote document.
type Record struct {
	ID        string
	Data      json.RawMessage
	UpdatedAt int64
}

// FilterOp is a supported comparison in a query filter.
type FilterOp string

const (
	FilterEquals      FilterOp = "eq"
	FilterGreaterThan FilterOp = "gt"
)

// Filter restricts a query to records matching a field comparison.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Equals builds an equality filter.
func Equals(field string, value any) Filter {
	return Filter{Field: field, Op: FilterEquals, Value: value}
}

// GreaterThan builds a strictly-greater-than filter.
func GreaterThan(field string, value any) Filter {
	return Filter{Field: field, Op: FilterGreaterThan, Value: value}
}

// ChangeFunc receives the current matching record set on every remote change.
type ChangeFunc func(records []Record)

// ErrorFunc receives subscription delivery errors.
type ErrorFunc func(err error)

// UnsubscribeFunc detaches a subscription. Safe to call multiple times.
type UnsubscribeFunc func()

// Store is the remote document store.
type Store interface {
	// Query returns up to limit records matching all filters.
	Query(ctx context.Context, collection string, filters []Filter, limit int) ([]Record, error)

	// Insert stores a new document and returns the server-assigned id.
	Insert(ctx context.Context, collection string, payload json.RawMessage) (string, error)

	// Update replaces the document with the given id. Returns ErrNotFound
	// if the id no longer exists remotely.
	Update(ctx context.Context, collection, id string, payload json.RawMessage) error

	// Delete removes a document. Deleting an already-absent id is not an
	// error.
	Delete(ctx context.Context, collection, id string) error

	// Subscribe delivers change notifications for records matching the
	// filters until the returned function is called or ctx is cancelled.
	Subscribe(ctx context.Context, collection string, filters []Filter, onChange ChangeFunc, onError ErrorFunc) (UnsubscribeFunc, error)
}

// Pinger probes remote reachability; the connectivity monitor drives its
// state machine off it.
type Pinger interface {
	Ping(ctx context.Context) error
}
