package session

import (
	"context"
	"maps"
	"sync"
	"time"
)

type memoryEntry struct {
	values    map[string]string
	expiresAt time.Time
}

// MemoryStore is a process-local Store for tests and single-instance runs.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[sid]
	if !ok || !e.expiresAt.After(s.now()) {
		return "", ErrNotFound
	}
	v, ok := e.values[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (s *MemoryStore) Put(_ context.Context, sid string, values map[string]string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[sid]
	if !ok {
		e = memoryEntry{values: make(map[string]string, len(values))}
	}
	maps.Copy(e.values, values)
	e.expiresAt = expiresAt
	s.sessions[sid] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sid)
	return nil
}

func (s *MemoryStore) CleanExpired(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	now := s.now()
	for id, e := range s.sessions {
		if !e.expiresAt.After(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}
