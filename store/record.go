// Package store provides the durable append/list record store shared by all
// name registry replicas. Records are kept in a JetStream stream; the stream
// sequence number assigned at append time is the insertion order, so every
// replica observes the same ordering regardless of client wall clocks.
package store

import (
	"context"
	"strings"
	"time"
)

// Record is a single stored name entry. Seq is the stream sequence assigned
// by the store at append time and is strictly increasing across appends from
// any replica.
type Record struct {
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
	Seq       uint64    `json:"-"`
}

// Store is the record store contract used by the registry service. Append is
// atomic: a record is either fully persisted or not persisted at all. List
// returns a snapshot in insertion order and never a torn record.
type Store interface {
	// Append validates, timestamps and persists a name value (trimmed of
	// surrounding whitespace) and returns the stored record.
	Append(ctx context.Context, value string) (Record, error)

	// List returns all persisted records in insertion order.
	List(ctx context.Context) ([]Record, error)

	// Close releases store resources.
	Close() error
}

// NormalizeValue trims surrounding whitespace from a submitted name.
// The trimmed form is what gets persisted.
func NormalizeValue(value string) string {
	return strings.TrimSpace(value)
}
