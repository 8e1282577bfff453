package acquire

import (
	"context"
	"sync"
)

// Record is what the index remembers about a materialized asset.
type Record struct {
	ID        string `db:"id"`
	Path      string `db:"path"`
	Title     string `db:"title"`
	Artist    string `db:"artist"`
	Duration  int64  `db:"duration"`
	Thumbnail string `db:"thumbnail"`
	CreatedAt int64  `db:"created_at"`
}

// Index stores metadata for files already in the cache so a cache hit needs
// no network access.
type Index interface {
	// FindAsset returns nil, nil when id is unknown.
	FindAsset(ctx context.Context, id string) (*Record, error)
	SaveAsset(ctx context.Context, rec Record) error
}

// MemoryIndex is an Index that lives as long as the process.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]Record)}
}

func (m *MemoryIndex) FindAsset(_ context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *MemoryIndex) SaveAsset(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	return nil
}
