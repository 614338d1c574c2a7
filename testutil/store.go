// Package testutil provides in-memory fakes and helpers for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/wintermutant/anvil-composable-tutorial/errors"
	"github.com/wintermutant/anvil-composable-tutorial/store"
)

// MemoryStore is an in-memory record store for testing. It honors the same
// contract as the JetStream store: trimmed values, insertion-order listing
// and atomic appends. Thread-safe for concurrent use.
type MemoryStore struct {
	mu          sync.RWMutex
	records     []store.Record
	nextSeq     uint64
	unavailable bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{nextSeq: 1}
}

// SetUnavailable toggles failure injection. While unavailable, Append and
// List return a transient store error, like a store with no connectivity.
func (s *MemoryStore) SetUnavailable(unavailable bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = unavailable
}

// Append stores a trimmed value and returns the record
func (s *MemoryStore) Append(_ context.Context, value string) (store.Record, error) {
	trimmed := store.NormalizeValue(value)
	if trimmed == "" {
		return store.Record{}, errors.WrapInvalid(errors.ErrEmptyName, "MemoryStore", "Append", "validate value")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.unavailable {
		return store.Record{}, errors.WrapTransient(errors.ErrStoreUnavailable, "MemoryStore", "Append", "store offline")
	}

	record := store.Record{
		Value:     trimmed,
		CreatedAt: time.Now().UTC(),
		Seq:       s.nextSeq,
	}
	s.nextSeq++
	s.records = append(s.records, record)

	return record, nil
}

// List returns a copy of all records in insertion order
func (s *MemoryStore) List(_ context.Context) ([]store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.unavailable {
		return nil, errors.WrapTransient(errors.ErrStoreUnavailable, "MemoryStore", "List", "store offline")
	}

	result := make([]store.Record, len(s.records))
	copy(result, s.records)
	return result, nil
}

// Close implements store.Store
func (s *MemoryStore) Close() error {
	return nil
}

// Count returns the number of stored records
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ store.Store = (*MemoryStore)(nil)
