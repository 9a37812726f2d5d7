// Package capabilities provides reference implementations of the engine's
// collaborator contracts: an in-memory record store for development and
// tests, logging notification/task sinks, and an HTTP webhook client.
package capabilities

import (
	"context"
	"fmt"
	"maps"
	"sync"
)

// MemoryRecordStore is an in-memory record store keyed by object type and
// record id. Safe for concurrent use.
type MemoryRecordStore struct {
	mu      sync.RWMutex
	records map[string]map[string]any
}

// NewMemoryRecordStore creates an empty in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		records: make(map[string]map[string]any),
	}
}

func key(objectType, recordID string) string {
	return objectType + "/" + recordID
}

// Put stores a record snapshot, replacing any existing one.
func (s *MemoryRecordStore) Put(objectType, recordID string, record map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key(objectType, recordID)] = maps.Clone(record)
}

// Get returns a copy of the record snapshot.
func (s *MemoryRecordStore) Get(_ context.Context, objectType, recordID string) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[key(objectType, recordID)]
	if !ok {
		return nil, fmt.Errorf("record %s/%s not found", objectType, recordID)
	}

	return maps.Clone(record), nil
}

// UpdateField writes a single field on an existing record.
func (s *MemoryRecordStore) UpdateField(_ context.Context, objectType, recordID, field string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[key(objectType, recordID)]
	if !ok {
		return fmt.Errorf("record %s/%s not found", objectType, recordID)
	}

	record[field] = value

	return nil
}
