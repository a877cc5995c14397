package kvstore

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a mutex-guarded Store with the same versioning semantics
// as the Redis implementation. It backs the test suites and local runs
// without a Redis instance.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]Record),
	}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.data[key]
	if !ok {
		return Record{}, ErrNotFound
	}

	return s.clone(rec), nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.data[key]
	s.data[key] = Record{
		Key:     key,
		Value:   append([]byte(nil), value...),
		Version: rec.Version + 1,
	}

	return nil
}

func (s *MemoryStore) CompareAndSet(_ context.Context, key string, value []byte, version int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.data[key].Version
	if current != version {
		return ErrVersionMismatch
	}

	s.data[key] = Record{
		Key:     key,
		Value:   append([]byte(nil), value...),
		Version: version + 1,
	}

	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) ScanPrefix(_ context.Context, prefix string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var recs []Record
	for key, rec := range s.data {
		if strings.HasPrefix(key, prefix) {
			recs = append(recs, s.clone(rec))
		}
	}

	sort.Slice(recs, func(i, j int) bool { return recs[i].Key < recs[j].Key })

	return recs, nil
}

func (s *MemoryStore) clone(rec Record) Record {
	return Record{
		Key:     rec.Key,
		Value:   append([]byte(nil), rec.Value...),
		Version: rec.Version,
	}
}
