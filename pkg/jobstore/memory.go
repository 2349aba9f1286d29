package jobstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
)

type memoryEntry struct {
	job       *models.BatchJob
	expiresAt time.Time
}

// MemoryStore is an in-process Store used when Redis is not configured.
// Terminal jobs expire ttl after their last save; expired entries are
// evicted lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]memoryEntry
}

// NewMemoryStore creates a MemoryStore. A ttl of zero keeps jobs forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[uuid.UUID]memoryEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Save(_ context.Context, job *models.BatchJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evictLocked(now)

	entry := memoryEntry{job: clone(job)}
	if s.ttl > 0 && job.Status.IsTerminal() {
		entry.expiresAt = now.Add(s.ttl)
	}
	s.entries[job.ID] = entry
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id uuid.UUID) (*models.BatchJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[id]
	if !ok || entry.expired(s.now()) {
		delete(s.entries, id)
		return nil, apperrors.NotFoundf("batch job %s", id)
	}
	return clone(entry.job), nil
}

func (s *MemoryStore) evictLocked(now time.Time) {
	for id, entry := range s.entries {
		if entry.expired(now) {
			delete(s.entries, id)
		}
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}
