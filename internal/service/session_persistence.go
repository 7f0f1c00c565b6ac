package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stemsi/exam-practice/internal/examsession"
	"github.com/stemsi/exam-practice/internal/model"
	"github.com/stemsi/exam-practice/internal/repository"
)

// storeTimeout bounds snapshot I/O that runs outside any request.
const storeTimeout = 5 * time.Second

// SnapshotStore persists one raw session snapshot per (user, exam type).
// Get returns repository.ErrSnapshotNotFound when nothing is stored.
type SnapshotStore interface {
	Get(ctx context.Context, userID string, examType model.ExamType) ([]byte, error)
	Save(ctx context.Context, userID string, examType model.ExamType, data []byte) error
	Delete(ctx context.Context, userID string, examType model.ExamType) error
	Exists(ctx context.Context, userID string, examType model.ExamType) (bool, error)
}

// sessionPersistence mirrors session state into a SnapshotStore.
type sessionPersistence struct {
	store SnapshotStore
	log   zerolog.Logger
}

func newSessionPersistence(store SnapshotStore, log zerolog.Logger) *sessionPersistence {
	return &sessionPersistence{
		store: store,
		log:   log.With().Str("component", "session_persistence").Logger(),
	}
}

// Load reads the stored snapshot. A snapshot that cannot be decoded, or that
// holds no exam parts, is deleted and reported as absent so the caller falls
// back to a fresh fetch. A failed read is returned as ErrSnapshotUnavailable:
// the snapshot may still be there and must not be replaced.
func (p *sessionPersistence) Load(ctx context.Context, userID string, examType model.ExamType) (examsession.State, bool, error) {
	data, err := p.store.Get(ctx, userID, examType)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return examsession.State{}, false, nil
	}
	if err != nil {
		p.log.Error().Err(err).
			Str("user_id", userID).
			Str("exam_type", string(examType)).
			Msg("Snapshot read failed")
		return examsession.State{}, false, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}

	snap, err := examsession.DecodeSnapshot(data)
	if err == nil && len(snap.ExamParts) == 0 {
		err = errors.New("snapshot has no exam parts")
	}
	if err != nil {
		p.log.Warn().Err(err).
			Str("user_id", userID).
			Str("exam_type", string(examType)).
			Msg("Discarding corrupt snapshot")
		p.Clear(ctx, userID, examType)
		return examsession.State{}, false, nil
	}

	if snap.ExamType == "" {
		snap.ExamType = examType
	}
	return snap, true, nil
}

// shouldPersist reports whether a state is worth mirroring: content is
// loaded and the session has not reached a terminal state.
func shouldPersist(s examsession.State) bool {
	return len(s.ExamParts) > 0 && !s.AreAllExamsCompleted && !s.IsSubmitted
}

// Sync writes the state when shouldPersist allows it. Failures are logged.
func (p *sessionPersistence) Sync(userID string, s examsession.State) {
	if !shouldPersist(s) {
		return
	}

	data, err := json.Marshal(s.Snapshot())
	if err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Msg("Snapshot encode failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := p.store.Save(ctx, userID, s.ExamType, data); err != nil {
		p.log.Error().Err(err).
			Str("user_id", userID).
			Str("exam_type", string(s.ExamType)).
			Msg("Snapshot save failed")
	}
}

// Clear removes the stored snapshot. Failures are logged.
func (p *sessionPersistence) Clear(ctx context.Context, userID string, examType model.ExamType) {
	if err := p.store.Delete(ctx, userID, examType); err != nil {
		p.log.Error().Err(err).
			Str("user_id", userID).
			Str("exam_type", string(examType)).
			Msg("Snapshot delete failed")
	}
}

// Exists reports whether a snapshot is stored.
func (p *sessionPersistence) Exists(ctx context.Context, userID string, examType model.ExamType) (bool, error) {
	ok, err := p.store.Exists(ctx, userID, examType)
	if err != nil {
		p.log.Error().Err(err).Str("user_id", userID).Msg("Snapshot existence check failed")
		return false, fmt.Errorf("%w: %w", ErrSnapshotUnavailable, err)
	}
	return ok, nil
}
