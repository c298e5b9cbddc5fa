package repository

import (
	"context"
	"errors"
	"time"

	"RegimeTrader/internal/domain/models"
	"RegimeTrader/pkg/cache"
)

// JobStore keeps job status records in the cache under job:<id>.
type JobStore struct {
	svc cache.Service
	ttl time.Duration
}

func NewJobStore(svc cache.Service, ttl time.Duration) *JobStore {
	return &JobStore{svc: svc, ttl: ttl}
}

func jobKey(id string) string { return cache.GenerateKeyWithParams("job", id) }

// Get returns (nil, nil) when the job is unknown or expired.
func (s *JobStore) Get(ctx context.Context, id string) (*models.Job, error) {
	var j models.Job
	if err := s.svc.Get(ctx, jobKey(id), &j); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return &j, nil
}

func (s *JobStore) Put(ctx context.Context, j *models.Job) error {
	return s.svc.Set(ctx, jobKey(j.ID), j, s.ttl)
}

// Claim takes a short lease on a job so a redelivered message is not run
// twice at the same time.
func (s *JobStore) Claim(ctx context.Context, id string, lease time.Duration) (bool, error) {
	return s.svc.TryLock(ctx, jobKey(id)+":lock", lease)
}

func (s *JobStore) Release(ctx context.Context, id string) error {
	return s.svc.Unlock(ctx, jobKey(id)+":lock")
}
