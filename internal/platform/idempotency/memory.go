package idempotency

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps idempotency records in process memory. Suitable for tests
// and single-instance deployments.
type MemoryStore struct {
	mu      sync.Mutex
	records map[string]Record
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

// Reserve implements Store.
func (s *MemoryStore) Reserve(_ context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[id]
	if ok && existing.ExpiresAt.After(now) {
		if existing.Fingerprint != fingerprint {
			return Reservation{}, ErrFingerprintMismatch
		}
		if existing.Completed {
			return Reservation{State: StateReplay, Record: existing}, nil
		}
		return Reservation{State: StateInFlight, Record: existing}, nil
	}

	s.records[id] = Record{
		Key:         id,
		Fingerprint: fingerprint,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	return Reservation{State: StateNew}, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(_ context.Context, key, fingerprint string, status int, contentType string, body []byte, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	id := recordKey(key)

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(body))
	copy(stored, body)
	s.records[id] = Record{
		Key:            id,
		Fingerprint:    fingerprint,
		Completed:      true,
		ResponseStatus: status,
		ResponseBody:   stored,
		ContentType:    contentType,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	return nil
}

// Release implements Store.
func (s *MemoryStore) Release(_ context.Context, key string) error {
	id := recordKey(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, id)
	return nil
}
