package jobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nouraellm/drugovery/pkg/apperrors"
	"github.com/nouraellm/drugovery/pkg/models"
)

const keyPrefix = "drugovery:batch_job:"

// RedisStore keeps jobs as JSON strings. Terminal jobs get the configured
// TTL; active jobs get activeTTL so a crashed process cannot leak keys forever.
type RedisStore struct {
	client    *redis.Client
	ttl       time.Duration
	activeTTL time.Duration
}

// NewRedisStore creates a RedisStore. ttl applies to finished jobs.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	activeTTL := 7 * 24 * time.Hour
	if ttl > activeTTL {
		activeTTL = ttl
	}
	return &RedisStore{client: client, ttl: ttl, activeTTL: activeTTL}
}

var _ Store = (*RedisStore)(nil)

func key(id uuid.UUID) string {
	return keyPrefix + id.String()
}

func (s *RedisStore) Save(ctx context.Context, job *models.BatchJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal batch job: %w", err)
	}

	ttl := s.activeTTL
	if job.Status.IsTerminal() {
		ttl = s.ttl
	}

	if err := s.client.Set(ctx, key(job.ID), data, ttl).Err(); err != nil {
		return apperrors.Transient(fmt.Errorf("failed to save batch job %s: %w", job.ID, err))
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id uuid.UUID) (*models.BatchJob, error) {
	data, err := s.client.Get(ctx, key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.NotFoundf("batch job %s", id)
	}
	if err != nil {
		return nil, apperrors.Transient(fmt.Errorf("failed to load batch job %s: %w", id, err))
	}

	var job models.BatchJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to decode batch job %s: %w", id, err)
	}
	return &job, nil
}
