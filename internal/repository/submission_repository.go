package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exam-practice/internal/config"
	"github.com/stemsi/exam-practice/internal/model"
)

// ErrQueueEmpty is returned by Pop when nothing arrived before the timeout.
var ErrQueueEmpty = errors.New("submission queue empty")

// SubmissionQueueRepository buffers finished exam reports in a Redis list
// until the submission worker delivers them to the backend.
type SubmissionQueueRepository struct {
	rdb *redis.Client
}

// NewSubmissionQueueRepository creates a new SubmissionQueueRepository.
func NewSubmissionQueueRepository(rdb *redis.Client) *SubmissionQueueRepository {
	return &SubmissionQueueRepository{rdb: rdb}
}

// Enqueue appends a submission. A submission without an ID gets one.
func (r *SubmissionQueueRepository) Enqueue(ctx context.Context, sub *model.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw).Err(); err != nil {
		return fmt.Errorf("enqueue submission: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next submission. The returned raw bytes
// are the payload as queued.
func (r *SubmissionQueueRepository) Pop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	item, err := r.rdb.BLPop(ctx, timeout, config.WorkerKey.PersistSubmissionsQueue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop submission: %w", err)
	}
	if len(item) < 2 {
		return nil, ErrQueueEmpty
	}
	return []byte(item[1]), nil
}

// TryPop returns the next submission without blocking.
func (r *SubmissionQueueRepository) TryPop(ctx context.Context) ([]byte, error) {
	item, err := r.rdb.LPop(ctx, config.WorkerKey.PersistSubmissionsQueue).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("pop submission: %w", err)
	}
	return item, nil
}

// Requeue puts a raw payload back at the tail for another attempt.
func (r *SubmissionQueueRepository) Requeue(ctx context.Context, raw []byte) error {
	if err := r.rdb.RPush(ctx, config.WorkerKey.PersistSubmissionsQueue, raw).Err(); err != nil {
		return fmt.Errorf("requeue submission: %w", err)
	}
	return nil
}

// Len returns the number of queued submissions.
func (r *SubmissionQueueRepository) Len(ctx context.Context) (int64, error) {
	n, err := r.rdb.LLen(ctx, config.WorkerKey.PersistSubmissionsQueue).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %w", err)
	}
	return n, nil
}
