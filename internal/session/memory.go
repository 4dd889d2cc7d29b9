package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	uploads map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	upload  Upload
	expires time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{
		ttl:     ttl,
		uploads: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, upload Upload) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.purgeLocked(now)
	if upload.CreatedAt.IsZero() {
		upload.CreatedAt = now
	}
	s.uploads[upload.ID] = memoryEntry{upload: upload, expires: now.Add(s.ttl)}
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (Upload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.uploads[id]
	if !ok || !s.now().Before(entry.expires) {
		delete(s.uploads, id)
		return Upload{}, ErrNotFound
	}
	return entry.upload, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	delete(s.uploads, id)
	s.mu.Unlock()
	return nil
}

// Len returns the number of unexpired uploads.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked(s.now())
	return len(s.uploads)
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for id, e := range s.uploads {
		if !now.Before(e.expires) {
			delete(s.uploads, id)
		}
	}
}
