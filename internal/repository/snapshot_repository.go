package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exam-practice/internal/config"
	"github.com/stemsi/exam-practice/internal/model"
)

// ErrSnapshotNotFound is returned when no snapshot exists for a user and exam type.
var ErrSnapshotNotFound = errors.New("session snapshot not found")

// ─── Redis ──────────────────────────────────────────────────────────

// RedisSnapshotRepository keeps one JSON snapshot per (user, exam type) key.
type RedisSnapshotRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisSnapshotRepository creates a new RedisSnapshotRepository. A zero
// ttl keeps snapshots until they are deleted.
func NewRedisSnapshotRepository(rdb *redis.Client, ttl time.Duration) *RedisSnapshotRepository {
	return &RedisSnapshotRepository{rdb: rdb, ttl: ttl}
}

// Get returns the raw snapshot.
func (r *RedisSnapshotRepository) Get(ctx context.Context, userID string, examType model.ExamType) ([]byte, error) {
	data, err := r.rdb.Get(ctx, config.CacheKey.ExamSessionKey(userID, string(examType))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return data, nil
}

// Save overwrites the snapshot.
func (r *RedisSnapshotRepository) Save(ctx context.Context, userID string, examType model.ExamType, data []byte) error {
	if err := r.rdb.Set(ctx, config.CacheKey.ExamSessionKey(userID, string(examType)), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot. Deleting a missing snapshot is not an error.
func (r *RedisSnapshotRepository) Delete(ctx context.Context, userID string, examType model.ExamType) error {
	if err := r.rdb.Del(ctx, config.CacheKey.ExamSessionKey(userID, string(examType))).Err(); err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot is stored.
func (r *RedisSnapshotRepository) Exists(ctx context.Context, userID string, examType model.ExamType) (bool, error) {
	n, err := r.rdb.Exists(ctx, config.CacheKey.ExamSessionKey(userID, string(examType))).Result()
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return n > 0, nil
}

// ─── PostgreSQL ─────────────────────────────────────────────────────

// PostgresSnapshotRepository stores snapshots in the exam_session_snapshots table.
type PostgresSnapshotRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSnapshotRepository creates a new PostgresSnapshotRepository.
func NewPostgresSnapshotRepository(pool *pgxpool.Pool) *PostgresSnapshotRepository {
	return &PostgresSnapshotRepository{pool: pool}
}

// Get returns the raw snapshot.
func (r *PostgresSnapshotRepository) Get(ctx context.Context, userID string, examType model.ExamType) ([]byte, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		`SELECT payload FROM exam_session_snapshots
		 WHERE user_id = $1 AND exam_type = $2`, userID, string(examType),
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSnapshotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return data, nil
}

// Save upserts the snapshot.
func (r *PostgresSnapshotRepository) Save(ctx context.Context, userID string, examType model.ExamType, data []byte) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO exam_session_snapshots (user_id, exam_type, payload, updated_at)
		 VALUES ($1, $2, $3, NOW())
		 ON CONFLICT (user_id, exam_type)
		 DO UPDATE SET payload = EXCLUDED.payload, updated_at = NOW()`,
		userID, string(examType), string(data))
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Delete removes the snapshot. Deleting a missing snapshot is not an error.
func (r *PostgresSnapshotRepository) Delete(ctx context.Context, userID string, examType model.ExamType) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM exam_session_snapshots WHERE user_id = $1 AND exam_type = $2`,
		userID, string(examType))
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return nil
}

// Exists reports whether a snapshot is stored.
func (r *PostgresSnapshotRepository) Exists(ctx context.Context, userID string, examType model.ExamType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM exam_session_snapshots WHERE user_id = $1 AND exam_type = $2)`,
		userID, string(examType),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check snapshot: %w", err)
	}
	return exists, nil
}

// DeleteStale removes snapshots untouched for longer than maxAge and returns
// how many were removed.
func (r *PostgresSnapshotRepository) DeleteStale(ctx context.Context, maxAge time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM exam_session_snapshots WHERE updated_at < $1`,
		time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("delete stale snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}
