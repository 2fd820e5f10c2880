package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/username/school-status/internal/calendar"
)

// MemoryStore keeps documents in memory
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[Key][]byte
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[Key][]byte)}
}

// Put stores raw JSON under key
func (ms *MemoryStore) Put(key Key, raw []byte) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.docs[key] = append([]byte(nil), raw...)
}

// PutJSON marshals v and stores it under key
func (ms *MemoryStore) PutJSON(key Key, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	ms.Put(key, raw)
	return nil
}

// Delete removes the document under key
func (ms *MemoryStore) Delete(key Key) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.docs, key)
}

// Path returns a pseudo path for key
func (ms *MemoryStore) Path(key Key) string {
	return "memory://" + key.String()
}

// Read returns a copy of the document under key
func (ms *MemoryStore) Read(ctx context.Context, key Key) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	raw, ok := ms.docs[key]
	if !ok {
		return nil, fmt.Errorf("failed to read %s: %w", ms.Path(key), os.ErrNotExist)
	}
	return append([]byte(nil), raw...), nil
}

// ListYears returns every year that has at least one document for the calendar type
func (ms *MemoryStore) ListYears(ctx context.Context, calendarType calendar.CalendarType) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	seen := make(map[int]bool)
	for key := range ms.docs {
		if key.CalendarType == calendarType && key.Year != 0 {
			seen[key.Year] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("failed to list years for %s: %w", calendarType, os.ErrNotExist)
	}

	years := make([]int, 0, len(seen))
	for year := range seen {
		years = append(years, year)
	}
	sort.Ints(years)
	return years, nil
}
